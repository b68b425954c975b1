package scanner

import (
	"container/list"
	"context"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"gallery/internal/metrics"

	"github.com/charlievieth/fastwalk"
)

// folderIndex is the sorted list of matching file names in one folder,
// as of the directory modification time it was built at.
type folderIndex struct {
	folder  string
	extKey  string
	modTime time.Time
	names   []string
}

// indexCache is an LRU of folder indexes keyed by folder path.
type indexCache struct {
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
	onEvict  func(folder string)
}

func newIndexCache(capacity int, onEvict func(string)) *indexCache {
	return &indexCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		onEvict:  onEvict,
	}
}

func (c *indexCache) get(folder string) (*folderIndex, bool) {
	el, ok := c.entries[folder]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*folderIndex), true
}

func (c *indexCache) put(idx *folderIndex) {
	if el, ok := c.entries[idx.folder]; ok {
		el.Value = idx
		c.order.MoveToFront(el)
		return
	}
	c.entries[idx.folder] = c.order.PushFront(idx)

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		folder := oldest.Value.(*folderIndex).folder
		delete(c.entries, folder)
		if c.onEvict != nil {
			c.onEvict(folder)
		}
	}
}

func (c *indexCache) remove(folder string) bool {
	el, ok := c.entries[folder]
	if !ok {
		return false
	}
	c.order.Remove(el)
	delete(c.entries, folder)
	return true
}

func (c *indexCache) len() int {
	return c.order.Len()
}

// listImageNames reads the direct children of folder and returns the names
// of non-hidden regular files (or symlinks to them) whose extension is in exts.
func listImageNames(ctx context.Context, folder string, exts map[string]bool) ([]string, error) {
	var (
		mu      sync.Mutex
		names   []string
		visited int
	)

	conf := &fastwalk.Config{Follow: false}

	err := fastwalk.Walk(conf, folder, func(fullPath string, d fs.DirEntry, err error) error {
		if err != nil {
			if fullPath == folder {
				return err
			}
			return nil
		}
		if fullPath == folder {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		// single level only
		if d.IsDir() {
			return fastwalk.SkipDir
		}

		name := d.Name()

		mu.Lock()
		visited++
		mu.Unlock()

		if strings.HasPrefix(name, ".") {
			return nil
		}
		if !exts[strings.ToLower(extension(name))] {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			info, err := fastwalk.StatDirEntry(fullPath, d)
			if err != nil || !info.Mode().IsRegular() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}

		mu.Lock()
		names = append(names, name)
		mu.Unlock()
		return nil
	})

	metrics.ScannerFilesScanned.Add(float64(visited))

	if err != nil {
		return nil, err
	}

	sortNames(names)
	return names, nil
}

// sortNames orders names case-insensitively, breaking ties on the exact name
// so the order is total and stable across calls.
func sortNames(names []string) {
	sort.Slice(names, func(i, j int) bool { return lessName(names[i], names[j]) })
}

func lessName(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

func extension(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[i:]
	}
	return ""
}
