package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/spotbar/internal/models"
)

var (
	_ list.Item = linkItem{}
)

// linkItem is one openable spotify: URI of the current track, implementing [list.Item].
type linkItem struct {
	kind  string
	label string
	uri   string
}

func (i linkItem) FilterValue() string { return i.label }
func (i linkItem) Title() string       { return i.label }
func (i linkItem) Description() string { return fmt.Sprintf("%s • %s", i.kind, i.uri) }

// trackLinks lists the track, its artists, then the album when mode shows it.
// Entries without a URI are skipped.
func trackLinks(item *models.Item, mode models.AlbumDisplay) []list.Item {
	if item == nil {
		return nil
	}

	var items []list.Item
	add := func(kind, label, uri string) {
		if uri != "" {
			items = append(items, linkItem{kind: kind, label: label, uri: uri})
		}
	}

	add("Track", item.Name, item.URI)
	for _, a := range item.Artists {
		add("Artist", a.Name, a.URI)
	}
	if item.ShowAlbum(mode) {
		add("Album", item.Album.Name, item.Album.URI)
	}
	return items
}
