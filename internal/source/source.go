package source

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Source yields input images by index: the pages of a PDF or the files of a directory.
type Source interface {
	Count() int
	Dimensions(index int) (width, height int, err error)
	Load(index int) (Image, error)
	Close() error
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".webp"}

func isImageFile(name string) bool {
	return slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(name)))
}

// Open picks a Source by path: PDF documents are rasterized at dpi, anything else is
// treated as an image file or a directory of images.
func Open(path string, dpi int) (Source, error) {
	if strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return NewPDFSource(path, dpi)
	}
	return NewImageSource(path)
}

// ImageSource serves image files from disk.
type ImageSource struct {
	paths []string
}

func NewImageSource(path string) (*ImageSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, &ImageLoadError{Path: path, Err: err}
	}

	var paths []string
	if fi.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, &ImageLoadError{Path: path, Err: err}
		}
		for _, entry := range entries {
			if !entry.IsDir() && isImageFile(entry.Name()) {
				paths = append(paths, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(paths)
	} else {
		paths = []string{path}
	}

	return &ImageSource{paths: paths}, nil
}

func (s *ImageSource) Count() int {
	return len(s.paths)
}

func (s *ImageSource) Path(index int) string {
	return s.paths[index]
}

func (s *ImageSource) Dimensions(index int) (int, int, error) {
	if index < 0 || index >= len(s.paths) {
		return 0, 0, fmt.Errorf("image index %d out of range [0,%d)", index, len(s.paths))
	}
	f, err := os.Open(s.paths[index])
	if err != nil {
		return 0, 0, &ImageLoadError{Path: s.paths[index], Err: err}
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, &ImageLoadError{Path: s.paths[index], Err: err}
	}
	return cfg.Width, cfg.Height, nil
}

func (s *ImageSource) Load(index int) (Image, error) {
	if index < 0 || index >= len(s.paths) {
		return Image{}, fmt.Errorf("image index %d out of range [0,%d)", index, len(s.paths))
	}
	return LoadFile(s.paths[index], RGB8)
}

func (s *ImageSource) Close() error {
	return nil
}

// PDFSource rasterizes PDF pages through MuPDF.
type PDFSource struct {
	doc  *fitz.Document
	path string
	dpi  int
}

func NewPDFSource(path string, dpi int) (*PDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, &ImageLoadError{Path: path, Err: err}
	}
	if dpi <= 0 {
		dpi = 150
	}
	return &PDFSource{doc: doc, path: path, dpi: dpi}, nil
}

func (p *PDFSource) Count() int {
	return p.doc.NumPage()
}

func (p *PDFSource) Dimensions(index int) (int, int, error) {
	rect, err := p.doc.Bound(index)
	if err != nil {
		return 0, 0, &ImageLoadError{Path: p.path, Err: err}
	}
	scale := float64(p.dpi) / 72.0
	return int(float64(rect.Dx()) * scale), int(float64(rect.Dy()) * scale), nil
}

func (p *PDFSource) Load(index int) (Image, error) {
	img, err := p.doc.ImageDPI(index, float64(p.dpi))
	if err != nil {
		return Image{}, &ImageLoadError{Path: fmt.Sprintf("%s#%d", p.path, index+1), Err: err}
	}
	return FromImage(img, RGB8), nil
}

func (p *PDFSource) Close() error {
	return p.doc.Close()
}
