package vault

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// [[Target]], [[Target|alias]], [[Target#heading]], ![[embed]]
	wikiLinkRe = regexp.MustCompile(`!?\[\[([^\[\]\n]+?)\]\]`)
	// [text](target) with an optional "title"
	mdLinkRe = regexp.MustCompile(`\[[^\[\]\n]*\]\(\s*<?([^)\s>]+)>?(?:\s+"[^"]*")?\s*\)`)
)

// RawLink is an unresolved link target as written in a note.
type RawLink struct {
	Target string
	Wiki   bool // [[wiki]] style, resolved vault-wide by name
}

// ParseLinks extracts outgoing link targets from note text. Headings and
// aliases are stripped; external URLs are ignored.
func ParseLinks(text string) []RawLink {
	var links []RawLink
	for _, m := range wikiLinkRe.FindAllStringSubmatch(text, -1) {
		target := m[1]
		if i := strings.IndexByte(target, '|'); i >= 0 {
			target = target[:i]
		}
		if i := strings.IndexByte(target, '#'); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target != "" {
			links = append(links, RawLink{Target: target, Wiki: true})
		}
	}
	for _, m := range mdLinkRe.FindAllStringSubmatch(text, -1) {
		target := m[1]
		if strings.Contains(target, "://") || strings.HasPrefix(target, "mailto:") || strings.HasPrefix(target, "#") {
			continue
		}
		if i := strings.IndexByte(target, '#'); i >= 0 {
			target = target[:i]
		}
		if decoded, err := url.PathUnescape(target); err == nil {
			target = decoded
		}
		if target != "" {
			links = append(links, RawLink{Target: target})
		}
	}
	return links
}

// Resolver maps link targets onto known note IDs.
type Resolver struct {
	ids    map[string]bool
	byName map[string][]string // lowercased base name without extension
}

// NewResolver indexes the given note IDs.
func NewResolver(ids []string) *Resolver {
	r := &Resolver{ids: make(map[string]bool, len(ids)), byName: make(map[string][]string)}
	for _, id := range ids {
		r.ids[id] = true
		name := strings.ToLower(strings.TrimSuffix(path.Base(id), path.Ext(id)))
		r.byName[name] = append(r.byName[name], id)
	}
	for _, candidates := range r.byName {
		sort.Slice(candidates, func(i, j int) bool {
			if len(candidates[i]) != len(candidates[j]) {
				return len(candidates[i]) < len(candidates[j])
			}
			return candidates[i] < candidates[j]
		})
	}
	return r
}

// Resolve returns the note a link in note `from` points to. Markdown links are
// relative to the source note's folder; wiki links match a vault path first
// and then the shortest note path with the same name.
func (r *Resolver) Resolve(link RawLink, from string) (string, bool) {
	target := strings.TrimPrefix(link.Target, "/")
	withExt := func(p string) string {
		if path.Ext(p) == "" {
			return p + NoteExt
		}
		return p
	}

	if !link.Wiki {
		candidate := path.Clean(path.Join(path.Dir(from), withExt(link.Target)))
		if strings.HasPrefix(link.Target, "/") {
			candidate = path.Clean(withExt(target))
		}
		if r.ids[candidate] {
			return candidate, true
		}
		return "", false
	}

	if r.ids[withExt(target)] {
		return withExt(target), true
	}
	if r.ids[target] {
		return target, true
	}
	name := strings.ToLower(strings.TrimSuffix(path.Base(target), path.Ext(target)))
	if ext := path.Ext(target); ext != "" && !strings.EqualFold(ext, NoteExt) {
		return "", false
	}
	if candidates := r.byName[name]; len(candidates) > 0 {
		return candidates[0], true
	}
	return "", false
}

type graphEntry struct {
	modTime time.Time
	links   []RawLink
}

// LinkGraph tracks forward links and backlinks across the vault. Refresh
// re-reads only notes whose mtime changed since the previous refresh.
type LinkGraph struct {
	store Store

	mu        sync.RWMutex
	entries   map[string]graphEntry
	forward   map[string][]string
	backlinks map[string][]string
}

// NewLinkGraph creates an empty graph over store.
func NewLinkGraph(store Store) *LinkGraph {
	return &LinkGraph{
		store:     store,
		entries:   make(map[string]graphEntry),
		forward:   make(map[string][]string),
		backlinks: make(map[string][]string),
	}
}

// Refresh brings the graph up to date with the store.
func (g *LinkGraph) Refresh(ctx context.Context) error {
	docs, err := g.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh link graph: %w", err)
	}

	g.mu.RLock()
	previous := g.entries
	g.mu.RUnlock()

	entries := make(map[string]graphEntry, len(docs))
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
		if prev, ok := previous[doc.ID]; ok && prev.modTime.Equal(doc.ModTime) {
			entries[doc.ID] = prev
			continue
		}
		text, err := g.store.Read(ctx, doc.ID)
		if err != nil {
			continue // Deleted or unreadable; it simply contributes no links
		}
		entries[doc.ID] = graphEntry{modTime: doc.ModTime, links: ParseLinks(text)}
	}

	resolver := NewResolver(ids)
	forward := make(map[string][]string, len(entries))
	backlinks := make(map[string][]string)
	for id, entry := range entries {
		seen := make(map[string]bool)
		for _, link := range entry.links {
			target, ok := resolver.Resolve(link, id)
			if !ok || target == id || seen[target] {
				continue
			}
			seen[target] = true
			forward[id] = append(forward[id], target)
			backlinks[target] = append(backlinks[target], id)
		}
	}
	for _, list := range forward {
		sort.Strings(list)
	}
	for _, list := range backlinks {
		sort.Strings(list)
	}

	g.mu.Lock()
	g.entries = entries
	g.forward = forward
	g.backlinks = backlinks
	g.mu.Unlock()
	return nil
}

// Forward returns the notes id links to.
func (g *LinkGraph) Forward(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.forward[id]...)
}

// Backlinks returns the notes linking to id.
func (g *LinkGraph) Backlinks(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.backlinks[id]...)
}
