package service

import (
	"context"
	"testing"
	"time"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/pkg/rag/progress"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStudentBookResolver_ResolveBook(t *testing.T) {
	license := uuid.New()
	now := time.Now()
	older := &entity.Book{Id: uuid.New(), LicenseId: license, Active: true, CreatedAt: now.Add(-2 * time.Hour)}
	newer := &entity.Book{Id: uuid.New(), LicenseId: license, Active: true, CreatedAt: now.Add(-time.Hour)}
	draft := &entity.Book{Id: uuid.New(), LicenseId: license, Active: false, CreatedAt: now}
	foreign := &entity.Book{Id: uuid.New(), LicenseId: uuid.New(), Active: true, CreatedAt: now}

	assigned := &entity.Student{Id: uuid.New(), LicenseId: license, BookId: &older.Id, Active: true}
	unassigned := &entity.Student{Id: uuid.New(), LicenseId: license, Active: true}
	staleAssignment := &entity.Student{Id: uuid.New(), LicenseId: license, BookId: &draft.Id, Active: true}
	disabled := &entity.Student{Id: uuid.New(), LicenseId: license, Active: false}

	data := newMemDB()
	for _, b := range []*entity.Book{older, newer, draft, foreign} {
		data.books[b.Id] = b
	}
	for _, s := range []*entity.Student{assigned, unassigned, staleAssignment, disabled} {
		data.students[s.Id] = s
	}
	resolver := NewStudentBookResolver(data)

	tests := []struct {
		name      string
		student   uuid.UUID
		license   uuid.UUID
		requested *uuid.UUID
		want      uuid.UUID
		wantErr   error
	}{
		{name: "requested book wins", student: assigned.Id, license: license, requested: &newer.Id, want: newer.Id},
		{name: "requested inactive book", student: assigned.Id, license: license, requested: &draft.Id, wantErr: ErrBookNotFound},
		{name: "requested book of another licence", student: assigned.Id, license: license, requested: &foreign.Id, wantErr: ErrBookNotFound},
		{name: "assigned book", student: assigned.Id, license: license, want: older.Id},
		{name: "latest active book when unassigned", student: unassigned.Id, license: license, want: newer.Id},
		{name: "inactive assignment falls back to latest", student: staleAssignment.Id, license: license, want: newer.Id},
		{name: "unknown student uses the licence", student: uuid.New(), license: license, want: newer.Id},
		{name: "disabled student", student: disabled.Id, license: license, wantErr: ErrStudentInactive},
		{name: "licence without books", student: uuid.New(), license: uuid.New(), wantErr: progress.ErrNoBookAssigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.ResolveBook(context.Background(), tt.student, tt.license, tt.requested)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
