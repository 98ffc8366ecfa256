package user

import (
	"github.com/jmoiron/sqlx"
	"github.com/saransh1220/wardrobe/internal/modules/user/domain"
	"github.com/saransh1220/wardrobe/internal/modules/user/infrastructure/persistence/postgres"
)

// Module exposes the parts of the user model other modules read from.
type Module struct {
	directory domain.Directory
}

func NewModule(db *sqlx.DB) *Module {
	return &Module{directory: postgres.NewPgUserDirectory(db)}
}

// Directory returns the user directory used for notification fan-out.
func (m *Module) Directory() domain.Directory {
	return m.directory
}
