package image_test

import (
	"testing"

	"github.com/MrWong99/newscast/pkg/provider/image"
)

func TestDataURI(t *testing.T) {
	tests := []struct {
		name string
		img  *image.Image
		want string
	}{
		{name: "nil", img: nil, want: ""},
		{name: "empty", img: &image.Image{}, want: ""},
		{name: "png default", img: &image.Image{Data: []byte("abc")}, want: "data:image/png;base64,YWJj"},
		{name: "jpeg", img: &image.Image{Data: []byte("abc"), MIMEType: "image/jpeg"}, want: "data:image/jpeg;base64,YWJj"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.img.DataURI(); got != tt.want {
				t.Errorf("DataURI() = %q, want %q", got, tt.want)
			}
		})
	}
}
