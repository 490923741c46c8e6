package file

import (
	"context"

	"github.com/nextlevelbuilder/carelink/internal/store"
)

// userView adapts Store's user methods to the store.UserStore interface
// (Store itself exposes the connection-store method set).
type userView struct {
	s *Store
}

func (v userView) Get(ctx context.Context, id string) (store.UserData, error) {
	return v.s.GetUser(ctx, id)
}

func (v userView) Put(ctx context.Context, u store.UserData) error {
	return v.s.PutUser(ctx, u)
}

// NewFileStores creates the store bundle backed by a single JSON document at
// path (standalone mode).
func NewFileStores(path string) *store.Stores {
	s := New(path)
	return &store.Stores{
		Connections: s,
		Users:       userView{s: s},
	}
}
