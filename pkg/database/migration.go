package database

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

type MigrationLogger struct {
	ectologger.Logger
}

func (l MigrationLogger) Verbose() bool {
	return true
}

func (l MigrationLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

type MigrationConfig struct {
	MigrationFolderPath string
	Version             uint
	Force               int

	// RequiredVersion is the schema version this build was written against.
	// After migrating, the store must be at least this version; jobs refuse to
	// run against an older schema instead of probing tables at runtime.
	RequiredVersion uint
}

func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{
		config: config,
		logger: logger,
	}
}

func (ms *MigrationService) resolveMigrationFolder() string {
	migrationFolder := ms.config.MigrationFolderPath
	if _, err := os.Stat(migrationFolder); err == nil {
		return migrationFolder
	}
	workingDirectory, _ := os.Getwd()
	separator := ""
	if workingDirectory != "/" {
		separator = "/"
	}
	migrationFolder = workingDirectory + separator + migrationFolder
	return migrationFolder
}

// Migrate applies pending migrations and then verifies the store satisfies
// RequiredVersion.
func (ms *MigrationService) Migrate(databaseName string, databaseInstance database.Driver) error {
	migrationFolder := ms.resolveMigrationFolder()
	if _, err := os.Stat(migrationFolder); err != nil {
		return errors.Wrap(err, fmt.Sprintf("migration folder %s does not exist", migrationFolder))
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationFolder, databaseName, databaseInstance)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migrate instance")
		return err
	}

	m.Log = MigrationLogger{Logger: ms.logger}

	if err := ms.runMigration(m); err != nil {
		return err
	}

	return ms.verifyVersion(m)
}

func (ms *MigrationService) runMigration(m *migrate.Migrate) error {
	if ms.config.Force != 0 {
		if err := m.Force(ms.config.Force); err != nil {
			ms.logger.WithError(err).Errorf("Failed to force database to version %d", ms.config.Force)
			return err
		}
	}

	done := make(chan bool)
	go ms.logProgress(done)

	startTime := time.Now()

	var migrationErr error
	if ms.config.Version != 0 {
		migrationErr = m.Migrate(ms.config.Version)
	} else {
		migrationErr = m.Up()
	}

	done <- true

	elapsedTime := time.Since(startTime)
	ms.logger.Infof("Database migrations completed in %v", elapsedTime)

	if migrationErr == nil || migrationErr == migrate.ErrNoChange {
		ms.logger.Info("Successfully applied migrations")
		return nil
	}

	ms.logger.WithError(migrationErr).Error("Failed to apply migrations")
	return migrationErr
}

// verifyVersion is the store capability check: the declared schema version the
// job requires must be met by the actual store.
func (ms *MigrationService) verifyVersion(m *migrate.Migrate) error {
	if ms.config.RequiredVersion == 0 {
		return nil
	}

	version, dirty, err := m.Version()
	if err != nil {
		return errors.Wrap(err, "failed to read store schema version")
	}
	if dirty {
		return fmt.Errorf("store schema version %d is dirty; refusing to run", version)
	}
	if version < ms.config.RequiredVersion {
		return fmt.Errorf("store schema version %d is older than required version %d", version, ms.config.RequiredVersion)
	}

	ms.logger.WithFields(map[string]any{
		"schema_version":   version,
		"required_version": ms.config.RequiredVersion,
	}).Info("Store schema version verified")
	return nil
}

func (ms *MigrationService) logProgress(done chan bool) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	dots := 0
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			dots = (dots + 1) % 4
			ms.logger.Debugf("Executing database migrations%s", strings.Repeat(".", dots))
		}
	}
}
