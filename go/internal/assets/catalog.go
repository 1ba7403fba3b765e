package assets

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/tradeblock/go/internal/config"
	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/mcdev12/tradeblock/go/internal/trade"
)

// Catalog is an in-memory asset registry. It serves the development server
// when no database is configured and stands in for rosters in tests.
type Catalog struct {
	mu         sync.RWMutex
	franchises map[uuid.UUID]string
	owners     map[string]trade.AssetDescriptor
	rosters    map[uuid.UUID]int
}

func NewCatalog() *Catalog {
	return &Catalog{
		franchises: make(map[uuid.UUID]string),
		owners:     make(map[string]trade.AssetDescriptor),
		rosters:    make(map[uuid.UUID]int),
	}
}

var (
	_ trade.AssetResolver = (*Catalog)(nil)
	_ RosterCounter       = (*Catalog)(nil)
)

func (c *Catalog) AddFranchise(id uuid.UUID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.franchises[id] = name
}

// AddPlayer puts a player on a franchise's roster.
func (c *Catalog) AddPlayer(id, franchiseID uuid.UUID, label string) {
	c.add(models.AssetKindPlayer, id, franchiseID, label)
}

// AddPick records an unused draft pick owned by a franchise.
func (c *Catalog) AddPick(id, franchiseID uuid.UUID, label string) {
	c.add(models.AssetKindPick, id, franchiseID, label)
}

// Remove drops an asset, as when a player is released or a pick is used.
func (c *Catalog) Remove(kind models.AssetKind, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := models.Asset{Kind: kind, ID: id}.Key()
	if desc, ok := c.owners[key]; ok && kind == models.AssetKindPlayer {
		c.rosters[desc.OwnerFranchiseID]--
	}
	delete(c.owners, key)
}

// Move changes the owner of a player or pick.
func (c *Catalog) Move(kind models.AssetKind, id, to uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := models.Asset{Kind: kind, ID: id}.Key()
	desc, ok := c.owners[key]
	if !ok {
		return fmt.Errorf("%s %s: %w", kind, id, trade.ErrAssetNotFound)
	}
	if kind == models.AssetKindPlayer {
		c.rosters[desc.OwnerFranchiseID]--
		c.rosters[to]++
	}
	desc.OwnerFranchiseID = to
	c.owners[key] = desc
	return nil
}

func (c *Catalog) add(kind models.AssetKind, id, franchiseID uuid.UUID, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owners[models.Asset{Kind: kind, ID: id}.Key()] = trade.AssetDescriptor{
		Kind:             kind,
		ID:               id,
		OwnerFranchiseID: franchiseID,
		Label:            label,
	}
	if kind == models.AssetKindPlayer {
		c.rosters[franchiseID]++
	}
}

func (c *Catalog) ResolveAsset(ctx context.Context, asset models.Asset) (*trade.AssetDescriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if asset.Kind == models.AssetKindCash {
		name, ok := c.franchises[asset.FromFranchiseID]
		if !ok {
			return nil, trade.ErrAssetNotFound
		}
		return &trade.AssetDescriptor{
			Kind:             asset.Kind,
			ID:               asset.ID,
			OwnerFranchiseID: asset.FromFranchiseID,
			Label:            "cash from " + name,
		}, nil
	}

	desc, ok := c.owners[asset.Key()]
	if !ok {
		return nil, trade.ErrAssetNotFound
	}
	return &desc, nil
}

func (c *Catalog) CountRosterPlayers(ctx context.Context, fantasyTeamID uuid.UUID) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(c.rosters[fantasyTeamID]), nil
}

// NewCatalogFromConfig loads franchises from the league config and assets
// from the catalog section.
func NewCatalogFromConfig(league config.LeagueConfig, catalog config.CatalogConfig) (*Catalog, error) {
	c := NewCatalog()
	for _, f := range league.Franchises {
		id, err := uuid.Parse(f.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid franchise id %q: %w", f.ID, err)
		}
		c.AddFranchise(id, f.Name)
	}
	for kind, entries := range map[models.AssetKind][]config.CatalogAsset{
		models.AssetKindPlayer: catalog.Players,
		models.AssetKindPick:   catalog.Picks,
	} {
		for _, e := range entries {
			id, err := uuid.Parse(e.ID)
			if err != nil {
				return nil, fmt.Errorf("invalid %s id %q: %w", kind, e.ID, err)
			}
			owner, err := uuid.Parse(e.Franchise)
			if err != nil {
				return nil, fmt.Errorf("invalid franchise %q for %s %s: %w", e.Franchise, kind, e.ID, err)
			}
			c.add(kind, id, owner, e.Label)
		}
	}
	return c, nil
}
