package tesseract

import "errors"

// ErrEmptyCrop is returned when the region does not overlap the image.
var ErrEmptyCrop = errors.New("region crop is empty")
