package sqlite

import (
	"context"
	"embed"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Migrator applies embedded migration scripts to a SqlStore. Scripts are
// named NNNN_description.sql and must set PRAGMA user_version to their own
// number as their final statement.
type Migrator struct {
	store *SqlStore
	log   *zap.Logger
}

func NewMigrator(store *SqlStore, log *zap.Logger) *Migrator {
	return &Migrator{
		store: store,
		log:   log,
	}
}

func (m *Migrator) Up(ctx context.Context, source embed.FS) error {
	list, err := source.ReadDir(".")
	if err != nil {
		return err
	}
	// sort the list according to the version number to ensure the migrations
	// are applied in the correct order
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})

	current, err := m.store.userVersion()
	if err != nil {
		return err
	}

	// the migration number of the latest script, for logging purposes
	final, err := scriptVersion(list[len(list)-1].Name())
	if err != nil {
		return err
	}

	if final > current {
		m.log.Info("Bringing up registry migrations", zap.Int("migration_count", final-current))
	}

	for _, f := range list {
		n := f.Name()
		v, err := scriptVersion(n)
		if err != nil {
			return err
		}

		// re-read user_version each time around so out-of-order scripts are
		// never applied over newer ones
		c, err := m.store.userVersion()
		if err != nil {
			return err
		}

		if v > c {
			m.log.Debug("Executing registry migration", zap.String("migration_name", n))
			mBytes, err := source.ReadFile(n)
			if err != nil {
				return err
			}

			if err := m.store.execTrans(ctx, string(mBytes)); err != nil {
				return err
			}
		}
	}

	return nil
}

// extract the version number as an integer from a file named like
// "0002_migration_name.sql"
func scriptVersion(filename string) (int, error) {
	vString := strings.Split(filename, "_")[0]
	vInt, err := strconv.Atoi(vString)
	if err != nil {
		return 0, err
	}

	return vInt, nil
}
