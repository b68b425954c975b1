// Package thumbnail renders a single image file into a small encoded
// thumbnail, returned as a data URI ready for an <img> tag or a JSON event.
//
// The pure Go path uses disintegration/imaging: the header is read first so
// oversized images are refused before any pixel is decoded, then the image
// is decoded with EXIF auto-orientation, fitted into a size×size box with
// Lanczos resampling and encoded as JPEG (quality 80 by default) or PNG.
// JPEG, PNG, GIF, BMP, TIFF and WebP are understood.
//
// When Options.UseVips is set and InitVips has been called, libvips is
// tried first; it shrinks JPEGs during decode and uses far less memory on
// large photos. Any vips failure falls back to the pure Go path.
//
// Corrupt or unsupported data is reported as ErrDecode; I/O failures are
// returned wrapped with their original error.
package thumbnail
