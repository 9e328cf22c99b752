package storage

import (
	"container/list"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/wcygan/sql-database/pkg/types"
)

// DefaultBufferPages is the buffer pool capacity when none is configured.
const DefaultBufferPages = 256

type pageKey struct {
	Table types.TableID
	Page  types.PageID
}

type cacheEntry struct {
	key  pageKey
	page *Page
}

// Pager is the buffer pool: a bounded page cache over one heap file per
// table. Pages are evicted strictly least-recently-used; a dirty victim is
// written back before it is dropped. The pager assumes a single writer and
// serializes its own bookkeeping with a mutex.
//
// A *Page returned by FetchPage stays valid only until the next pager call;
// callers mutate it and signal the write with MarkDirty before touching the
// pager again.
type Pager struct {
	mu       sync.Mutex
	baseDir  string
	capacity int

	cache map[pageKey]*list.Element
	lru   *list.List // front = most recently used
	dirty map[pageKey]bool
	files map[types.TableID]*os.File

	log *zap.SugaredLogger
}

// NewPager creates a pager rooted at baseDir caching at most capacity pages.
func NewPager(baseDir string, capacity int, log *zap.SugaredLogger) (*Pager, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("storage: buffer pool capacity must be positive, got %d", capacity)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}
	return &Pager{
		baseDir:  baseDir,
		capacity: capacity,
		cache:    make(map[pageKey]*list.Element),
		lru:      list.New(),
		dirty:    make(map[pageKey]bool),
		files:    make(map[types.TableID]*os.File),
		log:      log,
	}, nil
}

// TablePath returns the heap file path for a table.
func (p *Pager) TablePath(table types.TableID) string {
	return filepath.Join(p.baseDir, fmt.Sprintf("table_%d.tbl", table))
}

func (p *Pager) file(table types.TableID) (*os.File, error) {
	if f, ok := p.files[table]; ok {
		return f, nil
	}
	f, err := os.OpenFile(p.TablePath(table), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: open table file: %w", err)
	}
	p.files[table] = f
	return f, nil
}

// FetchPage returns the in-memory page, loading it from disk on a miss and
// promoting it to most-recently-used.
func (p *Pager) FetchPage(table types.TableID, pid types.PageID) (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := pageKey{table, pid}
	if elem, ok := p.cache[key]; ok {
		p.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).page, nil
	}

	page, err := p.loadPage(table, pid)
	if err != nil {
		return nil, err
	}
	if err := p.evictIfFull(); err != nil {
		return nil, err
	}
	elem := p.lru.PushFront(&cacheEntry{key: key, page: page})
	p.cache[key] = elem
	return page, nil
}

// AllocatePage assigns the next sequential page ID for the table, writes the
// fresh page through to disk so the file length reflects the allocation, and
// caches it as most-recently-used.
func (p *Pager) AllocatePage(table types.TableID) (types.PageID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.file(table)
	if err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("storage: stat table file: %w", err)
	}
	pid := types.PageID(info.Size() / PageSize)

	page := NewPage(pid)
	if err := p.writePage(table, page); err != nil {
		return 0, err
	}
	if err := p.evictIfFull(); err != nil {
		return 0, err
	}
	key := pageKey{table, pid}
	elem := p.lru.PushFront(&cacheEntry{key: key, page: page})
	p.cache[key] = elem
	return pid, nil
}

// MarkDirty records that the caller mutated the page in place.
func (p *Pager) MarkDirty(table types.TableID, pid types.PageID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := pageKey{table, pid}
	if _, ok := p.cache[key]; ok {
		p.dirty[key] = true
	}
}

// Flush writes every dirty page back to its file and clears the dirty set.
// It does not fsync; WAL sync covers durability for committed mutations.
func (p *Pager) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key := range p.dirty {
		elem, ok := p.cache[key]
		if !ok {
			delete(p.dirty, key)
			continue
		}
		if err := p.writePage(key.Table, elem.Value.(*cacheEntry).page); err != nil {
			return err
		}
		delete(p.dirty, key)
	}
	return nil
}

// NumPages derives the page count from the heap file length.
func (p *Pager) NumPages(table types.TableID) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.file(table)
	if err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("storage: stat table file: %w", err)
	}
	return uint64(info.Size() / PageSize), nil
}

// Resident reports whether the page is currently cached. Test hook for the
// eviction policy.
func (p *Pager) Resident(table types.TableID, pid types.PageID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.cache[pageKey{table, pid}]
	return ok
}

// RemoveTable drops every cached page for the table, closes its file handle,
// and deletes the heap file. Used by DROP TABLE.
func (p *Pager) RemoveTable(table types.TableID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, elem := range p.cache {
		if key.Table == table {
			p.lru.Remove(elem)
			delete(p.cache, key)
			delete(p.dirty, key)
		}
	}
	if f, ok := p.files[table]; ok {
		if err := f.Close(); err != nil {
			return fmt.Errorf("storage: close table file: %w", err)
		}
		delete(p.files, table)
	}
	if err := os.Remove(p.TablePath(table)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove table file: %w", err)
	}
	return nil
}

// Close flushes dirty pages and closes all table files.
func (p *Pager) Close() error {
	if err := p.Flush(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, f := range p.files {
		if err := f.Close(); err != nil {
			return fmt.Errorf("storage: close table file: %w", err)
		}
		delete(p.files, id)
	}
	return nil
}

func (p *Pager) loadPage(table types.TableID, pid types.PageID) (*Page, error) {
	f, err := p.file(table)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, PageSize)
	n, err := f.ReadAt(buf, int64(pid)*PageSize)
	if err == io.EOF && n == 0 {
		// Beyond the end of the file: hand back a fresh page.
		return NewPage(pid), nil
	}
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("storage: read page %d of table %d: %w", pid, table, err)
	}
	if n < PageSize {
		return nil, fmt.Errorf("storage: short page read: %d of %d bytes", n, PageSize)
	}
	return &Page{ID: pid, Data: buf}, nil
}

func (p *Pager) writePage(table types.TableID, page *Page) error {
	f, err := p.file(table)
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(page.Data, int64(page.ID)*PageSize); err != nil {
		return fmt.Errorf("storage: write page %d of table %d: %w", page.ID, table, err)
	}
	return nil
}

func (p *Pager) evictIfFull() error {
	if p.lru.Len() < p.capacity {
		return nil
	}
	elem := p.lru.Back()
	if elem == nil {
		return nil
	}
	entry := elem.Value.(*cacheEntry)
	if p.dirty[entry.key] {
		if err := p.writePage(entry.key.Table, entry.page); err != nil {
			return err
		}
		delete(p.dirty, entry.key)
		p.log.Debugw("evicted dirty page",
			"table", entry.key.Table, "page", entry.key.Page)
	}
	p.lru.Remove(elem)
	delete(p.cache, entry.key)
	return nil
}
