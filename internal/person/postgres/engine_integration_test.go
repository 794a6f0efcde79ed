// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/sitter-id/sitter/internal/audit"
	"github.com/sitter-id/sitter/internal/credential"
	"github.com/sitter-id/sitter/internal/identity"
	"github.com/sitter-id/sitter/internal/person"
	"github.com/sitter-id/sitter/internal/person/postgres"
)

var cheapParams = credential.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 24, KeyLength: 32}

var _ = Describe("Engine on PostgreSQL", func() {
	var (
		engine    *person.Engine
		hasher    *credential.Hasher
		auditHook *audit.Hook
		writer    *audit.PostgresWriter
	)

	BeforeEach(func(ctx SpecContext) {
		truncate(ctx)

		var err error
		hasher, err = credential.NewHasher(cheapParams)
		Expect(err).NotTo(HaveOccurred())
		credHook, err := credential.NewHook(hasher, nil)
		Expect(err).NotTo(HaveOccurred())

		writer = audit.NewPostgresWriter(pool)
		auditHook, err = audit.NewHook(writer, audit.Options{})
		Expect(err).NotTo(HaveOccurred())

		reg, err := person.NewRegistry(identity.NewHook(), credHook, auditHook)
		Expect(err).NotTo(HaveOccurred())
		engine, err = person.NewEngine(postgres.NewRepository(pool), postgres.NewTransactor(pool), reg)
		Expect(err).NotTo(HaveOccurred())
	})

	closeAudit := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Expect(auditHook.Close(ctx)).To(Succeed())
	}

	It("runs create, update, delete and read end to end", func(ctx SpecContext) {
		created, err := engine.Create(ctx, &person.Request{Email: "someone@example.com", Password: "correct horse"})
		Expect(err).NotTo(HaveOccurred())
		Expect(created.ID).NotTo(Equal(uuid.Nil))
		Expect(created.PasswordHash).To(HavePrefix("$argon2id$"))

		ok, err := hasher.Verify("correct horse", created.PasswordHash)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		updated, err := engine.Update(ctx, created.ID, &person.Request{Email: "renamed@example.com"})
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Email).To(Equal("renamed@example.com"))
		Expect(updated.PasswordHash).To(Equal(created.PasswordHash))

		n, err := engine.Delete(ctx, created.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		_, err = engine.Get(ctx, created.ID)
		Expect(errors.Is(err, person.ErrNotFound)).To(BeTrue())

		closeAudit()
		entries, err := writer.List(ctx, audit.Filter{PersonID: &created.ID})
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(3))
		Expect(entries[2].Action).To(Equal(person.ActionDelete))
		Expect(entries[2].Email).To(Equal("renamed@example.com"))
	})

	It("rejects case-insensitive duplicate emails", func(ctx SpecContext) {
		defer closeAudit()
		_, err := engine.Create(ctx, &person.Request{Email: "dup@example.com", Password: "password1"})
		Expect(err).NotTo(HaveOccurred())

		_, err = engine.Create(ctx, &person.Request{Email: "DUP@example.com", Password: "password2"})
		Expect(errors.Is(err, person.ErrAlreadyExists)).To(BeTrue())
		Expect(errors.Is(err, person.ErrPersistence)).To(BeTrue())

		people, err := engine.Read(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(people).To(HaveLen(1))
	})

	It("lists an empty table as an empty slice", func(ctx SpecContext) {
		defer closeAudit()
		people, err := engine.Read(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(people).NotTo(BeNil())
		Expect(people).To(BeEmpty())
	})

	It("returns zero when deleting a missing id", func(ctx SpecContext) {
		defer closeAudit()
		n, err := engine.Delete(ctx, uuid.New())
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())
	})

	It("rolls back when the transaction body fails", func(ctx SpecContext) {
		defer closeAudit()
		tr := postgres.NewTransactor(pool)
		repo := postgres.NewRepository(pool)
		forced := errors.New("abort")

		err := tr.InTransaction(ctx, func(ctx context.Context) error {
			_, err := repo.Insert(ctx, &person.Request{Email: "ghost@example.com", Password: "h"})
			Expect(err).NotTo(HaveOccurred())
			return forced
		})
		Expect(errors.Is(err, forced)).To(BeTrue())

		_, err = repo.GetByEmail(ctx, "ghost@example.com")
		Expect(errors.Is(err, person.ErrNotFound)).To(BeTrue())
	})
})
