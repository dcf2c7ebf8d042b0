package ocr

import "context"

// TextExtractor reads the text printed on an image. ext is the image format
// ("jpg", "png", ...). An image with no recognizable text yields "" and a nil
// error; deciding whether that is fatal is up to the caller.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte, ext string) (string, error)
}
