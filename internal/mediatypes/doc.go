// Package mediatypes holds the image extension and MIME tables shared by the
// scanner, the thumbnail codec and the configuration loader.
//
// It has no dependencies beyond the standard library so any package can
// import it without creating cycles.
//
//	if mediatypes.IsImage(name) {
//	    // eligible for a thumbnail
//	}
//
//	exts := mediatypes.NormalizeExtensions([]string{"JPG", ".png"}) // [.jpg .png]
package mediatypes
