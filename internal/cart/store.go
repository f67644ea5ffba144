package cart

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/apperr"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/orders"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/validation"
)

// Item is one cart line. Lines are identified by product plus the chosen
// variant values, so the same shirt in two sizes is two lines.
type Item struct {
	ProductID int64             `json:"productId" validate:"gt=0"`
	Name      string            `json:"name" validate:"required"`
	Price     int64             `json:"price" validate:"gte=0,lte=1000000000"`
	Quantity  int               `json:"quantity" validate:"min=1,max=10000"`
	Image     string            `json:"image,omitempty"`
	Variants  map[string]string `json:"variants,omitempty"`
}

func (it Item) matches(productID int64, variants map[string]string) bool {
	if it.ProductID != productID {
		return false
	}
	// nil and empty selections are the same selection
	if len(it.Variants) == 0 && len(variants) == 0 {
		return true
	}
	return maps.Equal(it.Variants, variants)
}

// Snapshot is the serialized form of a cart; it is what Storage persists.
type Snapshot struct {
	Items    []Item  `json:"items"`
	Wishlist []int64 `json:"wishlist"`
}

type Storage interface {
	Load(ctx context.Context, session string) (Snapshot, bool, error)
	Save(ctx context.Context, session string, snap Snapshot) error
}

// Store is the cart and wishlist of one session. Every mutation is written
// through to Storage; a failed write rolls the in-memory state back.
type Store struct {
	mu       sync.Mutex
	session  string
	storage  Storage
	items    []Item
	wishlist []int64
}

func NewStore(session string, storage Storage) *Store {
	return &Store{session: session, storage: storage}
}

func (s *Store) Session() string { return s.session }

// Hydrate replaces in-memory state with the persisted snapshot. A session
// with nothing stored hydrates to an empty cart.
func (s *Store) Hydrate(ctx context.Context) error {
	snap, ok, err := s.storage.Load(ctx, s.session)
	if err != nil {
		return err
	}
	if !ok {
		snap = Snapshot{}
	}
	s.Restore(snap)
	return nil
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	items := make([]Item, len(s.items))
	for i, it := range s.items {
		it.Variants = maps.Clone(it.Variants)
		items[i] = it
	}
	return Snapshot{Items: items, Wishlist: slices.Clone(s.wishlist)}
}

// Restore loads a snapshot, dropping lines that could never be valid.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = s.items[:0]
	for _, it := range snap.Items {
		if it.ProductID <= 0 || it.Quantity <= 0 || it.Quantity > orders.MaxQuantity ||
			it.Price < 0 || it.Price > orders.MaxUnitPrice {
			continue
		}
		it.Variants = maps.Clone(it.Variants)
		s.items = append(s.items, it)
	}
	s.wishlist = slices.Clone(snap.Wishlist)
}

// mutate applies fn and persists the result, restoring the previous state
// if the write fails.
func (s *Store) mutate(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.snapshotLocked()
	if err := fn(); err != nil {
		return err
	}
	if err := s.storage.Save(ctx, s.session, s.snapshotLocked()); err != nil {
		s.items, s.wishlist = prev.Items, prev.Wishlist
		return err
	}
	return nil
}

func (s *Store) find(productID int64, variants map[string]string) int {
	return slices.IndexFunc(s.items, func(it Item) bool { return it.matches(productID, variants) })
}

// Add puts item in the cart, merging quantities with an existing line for
// the same product and variant selection.
func (s *Store) Add(ctx context.Context, item Item) error {
	if err := validation.Struct(&item); err != nil {
		return err
	}
	return s.mutate(ctx, func() error {
		if i := s.find(item.ProductID, item.Variants); i >= 0 {
			if s.items[i].Quantity+item.Quantity > orders.MaxQuantity {
				return tooMany()
			}
			s.items[i].Quantity += item.Quantity
			return nil
		}
		item.Variants = maps.Clone(item.Variants)
		s.items = append(s.items, item)
		return nil
	})
}

// SetQuantity overwrites a line's quantity; zero or less removes the line.
func (s *Store) SetQuantity(ctx context.Context, productID int64, variants map[string]string, qty int) error {
	return s.mutate(ctx, func() error {
		i := s.find(productID, variants)
		if i < 0 {
			return apperr.ErrNotFound
		}
		if qty <= 0 {
			s.items = slices.Delete(s.items, i, i+1)
			return nil
		}
		if qty > orders.MaxQuantity {
			return tooMany()
		}
		s.items[i].Quantity = qty
		return nil
	})
}

func tooMany() error {
	return apperr.NewValidationError("quantity", "must be at most "+strconv.Itoa(orders.MaxQuantity))
}

func (s *Store) Remove(ctx context.Context, productID int64, variants map[string]string) error {
	return s.mutate(ctx, func() error {
		i := s.find(productID, variants)
		if i < 0 {
			return apperr.ErrNotFound
		}
		s.items = slices.Delete(s.items, i, i+1)
		return nil
	})
}

// Clear empties the cart. The wishlist is kept.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func() error {
		s.items = nil
		return nil
	})
}

func (s *Store) Items() []Item {
	return s.Snapshot().Items
}

func (s *Store) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, it := range s.items {
		total += it.Price * int64(it.Quantity)
	}
	return total
}

// ToggleWishlist adds or removes productID and reports whether it is now
// wishlisted.
func (s *Store) ToggleWishlist(ctx context.Context, productID int64) (bool, error) {
	if productID <= 0 {
		return false, apperr.NewValidationError("productId", "must be a positive integer")
	}
	var on bool
	err := s.mutate(ctx, func() error {
		if i := slices.Index(s.wishlist, productID); i >= 0 {
			s.wishlist = slices.Delete(s.wishlist, i, i+1)
			return nil
		}
		s.wishlist = append(s.wishlist, productID)
		on = true
		return nil
	})
	return on, err
}

func (s *Store) Wishlist() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.wishlist)
}

// CheckoutItems renders the cart as order lines for the checkout path.
func (s *Store) CheckoutItems() []orders.ItemRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.ItemRequest, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, orders.ItemRequest{
			ID:       orders.ProductRef(strconv.FormatInt(it.ProductID, 10)),
			Name:     it.Name,
			Price:    it.Price,
			Quantity: it.Quantity,
			Image:    it.Image,
			Variants: maps.Clone(it.Variants),
		})
	}
	return out
}
