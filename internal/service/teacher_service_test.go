package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-coverage-api/internal/models"
	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
)

type mockTeacherRepo struct {
	items       map[string]*models.Teacher
	listResult  []models.Teacher
	listErr     error
	createErr   error
	created     []*models.Teacher
	deactivated []string
}

func newMockTeacherRepo(teachers ...models.Teacher) *mockTeacherRepo {
	repo := &mockTeacherRepo{items: map[string]*models.Teacher{}}
	for i := range teachers {
		t := teachers[i]
		repo.items[t.ID] = &t
	}
	return repo
}

func (m *mockTeacherRepo) List(_ context.Context, _ models.TeacherFilter) ([]models.Teacher, error) {
	return m.listResult, m.listErr
}

func (m *mockTeacherRepo) FindByID(_ context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := m.items[id]; ok {
		cp := *teacher
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherRepo) Create(_ context.Context, teacher *models.Teacher) error {
	if m.createErr != nil {
		return m.createErr
	}
	teacher.ID = "t-new"
	m.created = append(m.created, teacher)
	return nil
}

func (m *mockTeacherRepo) Deactivate(_ context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

func TestTeacherServiceCreateNormalizes(t *testing.T) {
	repo := newMockTeacherRepo()
	svc := NewTeacherService(repo, nil, nil)

	blank := "  "
	teacher, err := svc.Create(context.Background(), CreateTeacherRequest{
		Email:       " Ana@School.ID ",
		FullName:    " Ana Putri ",
		NIP:         &blank,
		Specialties: []string{"Math", " math ", "Physics"},
		CanCover:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "t-new", teacher.ID)
	assert.Equal(t, "ana@school.id", teacher.Email)
	assert.Equal(t, "Ana Putri", teacher.FullName)
	assert.Nil(t, teacher.NIP)
	assert.Equal(t, pq.StringArray{"Math", "Physics"}, teacher.Specialties)
	assert.True(t, teacher.Active)
	assert.True(t, teacher.CanCover)
}

func TestTeacherServiceCreateErrors(t *testing.T) {
	svc := NewTeacherService(newMockTeacherRepo(), nil, nil)
	_, err := svc.Create(context.Background(), CreateTeacherRequest{Email: "not-an-email", FullName: "X"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	repo := newMockTeacherRepo()
	repo.createErr = &pq.Error{Code: "23505"}
	svc = NewTeacherService(repo, nil, nil)
	_, err = svc.Create(context.Background(), CreateTeacherRequest{Email: "a@b.id", FullName: "A"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	repo.createErr = errors.New("db down")
	_, err = svc.Create(context.Background(), CreateTeacherRequest{Email: "a@b.id", FullName: "A"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceGetAndDeactivate(t *testing.T) {
	repo := newMockTeacherRepo(models.Teacher{ID: "t1", FullName: "Budi", Active: true})
	svc := NewTeacherService(repo, nil, nil)

	teacher, err := svc.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "Budi", teacher.FullName)

	_, err = svc.Get(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Deactivate(context.Background(), "t1"))
	assert.Equal(t, []string{"t1"}, repo.deactivated)
	assert.Error(t, svc.Deactivate(context.Background(), "missing"))
}

func TestTeacherServiceListNeverNil(t *testing.T) {
	svc := NewTeacherService(newMockTeacherRepo(), nil, nil)
	teachers, err := svc.List(context.Background(), models.TeacherFilter{})
	require.NoError(t, err)
	assert.NotNil(t, teachers)
	assert.Empty(t, teachers)
}
