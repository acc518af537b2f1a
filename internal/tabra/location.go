package tabra

import "fmt"

// Location identifies where an unused card currently sits: the central
// depot or a specific filial. It replaces the nullable foreign key in
// storage with an explicit, exhaustively handled value.
type Location struct {
	filialID uint64
	atFilial bool
}

// Depot returns the central depot location.
func Depot() Location {
	return Location{}
}

// AtFilial returns the location for a specific filial.
func AtFilial(id uint64) Location {
	return Location{filialID: id, atFilial: true}
}

// LocationFromColumn converts the persisted nullable filial ID.
func LocationFromColumn(filialID *uint64) Location {
	if filialID == nil {
		return Depot()
	}
	return AtFilial(*filialID)
}

// IsDepot reports whether the location is the central depot.
func (l Location) IsDepot() bool {
	return !l.atFilial
}

// FilialID returns the filial ID and whether the location is a filial.
func (l Location) FilialID() (uint64, bool) {
	return l.filialID, l.atFilial
}

// Column converts the location into the persisted nullable filial ID.
func (l Location) Column() *uint64 {
	if !l.atFilial {
		return nil
	}
	id := l.filialID
	return &id
}

func (l Location) String() string {
	if !l.atFilial {
		return "depot"
	}
	return fmt.Sprintf("filial %d", l.filialID)
}
