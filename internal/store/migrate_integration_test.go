//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/coursekeep/coursekeep/internal/store"
)

var _ = Describe("Migrator", func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("coursekeep_test"),
			postgres.WithUsername("coursekeep"),
			postgres.WithPassword("coursekeep"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = container.Terminate(ctx)
	})

	It("runs a full up/down cycle", func() {
		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		defer migrator.Close()

		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())

		Expect(migrator.Up()).To(Succeed())
		latest, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(latest).To(BeNumerically(">", 0))
		Expect(dirty).To(BeFalse())

		Expect(migrator.Steps(-1)).To(Succeed())
		version, _, err = migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(latest - 1))

		Expect(migrator.Steps(1)).To(Succeed())
		Expect(migrator.Down()).To(Succeed())
		version, _, err = migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())

		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Up()).To(Succeed(), "a second Up is a no-op")
	})

	It("seeds the three roles", func() {
		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Close()).To(Succeed())

		pool, err := store.OpenPool(ctx, connStr, store.PoolConfig{MaxConns: 2})
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		rows, err := pool.Query(ctx, `SELECT name FROM roles ORDER BY name`)
		Expect(err).NotTo(HaveOccurred())
		defer rows.Close()

		var names []string
		for rows.Next() {
			var name string
			Expect(rows.Scan(&name)).To(Succeed())
			names = append(names, name)
		}
		Expect(rows.Err()).NotTo(HaveOccurred())
		Expect(names).To(Equal([]string{"Admin", "Instructor", "Student"}))
	})
})
