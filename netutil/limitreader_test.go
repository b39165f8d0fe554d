package netutil_test

import (
	"strings"
	"testing"

	"github.com/kick-dev/kick-host-sdk/netutil"
)

func TestReadAllLimited(t *testing.T) {
	t.Run("UnderLimit", func(t *testing.T) {
		data, err := netutil.ReadAllLimited(strings.NewReader("hello"), 10)
		if err != nil {
			t.Fatalf("ReadAllLimited failed: %v", err)
		}
		if string(data) != "hello" {
			t.Errorf("expected hello, got %q", data)
		}
	})

	t.Run("ExactlyAtLimit", func(t *testing.T) {
		data, err := netutil.ReadAllLimited(strings.NewReader("hello"), 5)
		if err != nil {
			t.Fatalf("content exactly at the limit should succeed: %v", err)
		}
		if string(data) != "hello" {
			t.Errorf("expected hello, got %q", data)
		}
	})

	t.Run("OverLimit", func(t *testing.T) {
		_, err := netutil.ReadAllLimited(strings.NewReader("hello world"), 5)
		if err == nil {
			t.Fatal("expected a size limit error")
		}
		if !netutil.IsSizeLimitError(err) {
			t.Errorf("expected SizeLimitError, got %v", err)
		}
	})

	t.Run("EmptyInput", func(t *testing.T) {
		data, err := netutil.ReadAllLimited(strings.NewReader(""), 5)
		if err != nil {
			t.Fatalf("ReadAllLimited failed: %v", err)
		}
		if len(data) != 0 {
			t.Errorf("expected empty, got %q", data)
		}
	})

	t.Run("ZeroLimitRejectsAnyContent", func(t *testing.T) {
		if _, err := netutil.ReadAllLimited(strings.NewReader("x"), 0); !netutil.IsSizeLimitError(err) {
			t.Errorf("expected SizeLimitError, got %v", err)
		}
	})
}

func TestIsSizeLimitError(t *testing.T) {
	if netutil.IsSizeLimitError(nil) {
		t.Error("nil is not a size limit error")
	}
	if !netutil.IsSizeLimitError(&netutil.SizeLimitError{Limit: 7}) {
		t.Error("expected true for SizeLimitError")
	}
}
