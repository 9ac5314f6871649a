package onnx

import "testing"

func TestOptionsValidate(t *testing.T) {
	opts := DefaultOptions()
	if err := opts.validate(); err == nil {
		t.Error("expected error without model path")
	}
	opts.ModelPath = "model.onnx"
	if err := opts.validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
	opts.InputWidth = 0
	if err := opts.validate(); err == nil {
		t.Error("expected error for zero input size")
	}
}

func TestModelID(t *testing.T) {
	if got := DefaultOptions().id(); got != "depth-anything-v2-small" {
		t.Errorf("id = %q", got)
	}
	if got := (Options{}).id(); got != "onnx" {
		t.Errorf("fallback id = %q", got)
	}
}

func TestNewRequiresModel(t *testing.T) {
	opts := DefaultOptions()
	if _, err := New(opts); err == nil {
		t.Error("expected error without model path")
	}
}
