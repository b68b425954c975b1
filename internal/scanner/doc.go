/*
Package scanner lists the image files of a folder in bounded pages.

	s := scanner.New(scanner.Options{Watch: true})
	defer s.Close()

	page, err := s.Scan(ctx, "/photos/2024", nil, 0, 500)
	if errors.Is(err, scanner.ErrNotFound) {
	    // missing, not a directory, or unreadable
	}
	next, err := s.Scan(ctx, "/photos/2024", nil, page.NextOffset, 200)

# Ordering

Images are ordered by file name, case-insensitively, with the exact name
breaking ties. Hidden files, subdirectories and files with unrecognised
extensions are skipped; symlinks are followed when they point at a regular
file. The ordinal of an image in that order is its ImageReference.Index.

# Folder index

The first scan of a folder reads its entries once with fastwalk and keeps
the sorted name list in a small LRU. Later scans stat the folder and reuse
the list while the directory modification time is unchanged; with
Options.Watch an fsnotify watch drops the list as soon as anything in the
folder changes. Pages are therefore slices of one consistent snapshot, so
two scans of an unchanged folder with the same offset and limit return the
same images.

# Total count estimate

TotalCountEstimate is the length of the current index, and never decreases
between scans of the same folder until ResetEstimate is called. When files
disappear the estimate can exceed the real count; HasMore is always computed
from the real index.
*/
package scanner
