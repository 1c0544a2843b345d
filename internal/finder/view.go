package finder

import (
	"github.com/onnwee/shopfinder/internal/geo"
	"github.com/onnwee/shopfinder/internal/shop"
)

// View is the render model of the whole screen, published after every
// change.
type View struct {
	Gate      string         `json:"gate"`
	Query     string         `json:"query,omitempty"`
	Shops     []shop.Shop    `json:"shops"`
	Exhausted bool           `json:"exhausted"`
	Loading   bool           `json:"loading"`
	Selected  string         `json:"selected,omitempty"`
	Center    geo.Coordinate `json:"center"`
	// Origin is the user's position; omitted while unknown.
	Origin        *geo.Coordinate `json:"origin,omitempty"`
	SignedIn      bool            `json:"signedIn"`
	SettingsKnown bool            `json:"settingsKnown"`
	Notices       []Notice        `json:"notices"`
}

// Snapshot assembles the current View.
func (f *Finder) Snapshot() View {
	page := f.pager.Snapshot()
	v := View{
		Gate:          f.gate.State().String(),
		Query:         page.Query,
		Shops:         page.Shops,
		Exhausted:     page.Exhausted,
		Loading:       page.Loading,
		Center:        f.view.Center(),
		SignedIn:      f.monitor.IsValid(),
		SettingsKnown: f.settings.Known(),
		Notices:       f.Notices(),
	}
	if v.Shops == nil {
		v.Shops = []shop.Shop{}
	}
	if v.Notices == nil {
		v.Notices = []Notice{}
	}
	if s, ok := f.view.Selected(); ok {
		v.Selected = s.PlaceID
	}
	if origin, ok := f.view.Origin(); ok {
		v.Origin = &origin
	}
	return v
}

func (f *Finder) publish() {
	if f.publisher == nil {
		return
	}
	f.publisher.Publish(f.Snapshot())
}
