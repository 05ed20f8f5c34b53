package directories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+directories\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)`

	now := time.Now()
	mock.ExpectExec(q).
		WithArgs("d1", "u1", "Docs", nil, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Directory{
		ID: "d1", UserID: "u1", Name: "Docs", ParentID: nil, CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+directories\b`

	now := time.Now()
	mock.ExpectExec(q).
		WithArgs("d1", "u1", "Docs", nil, now).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &models.Directory{
		ID: "d1", UserID: "u1", Name: "Docs", ParentID: nil, CreatedAt: now,
	})
	if !errors.Is(err, common.ErrDuplicateName) {
		t.Fatalf("want ErrDuplicateName, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+directories\b`).
		WithArgs("d1", "u1", "Docs", nil, now).
		WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.Directory{
		ID: "d1", UserID: "u1", Name: "Docs", ParentID: nil, CreatedAt: now,
	})
	if err == nil || errors.Is(err, common.ErrDuplicateName) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+id,\s*user_id,\s*name,\s*parent_id,\s*created_at\s+FROM\s+directories\s+WHERE\s+id=\$1\s+AND\s+user_id=\$2`).
		WithArgs("d1", "u1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "u1", "d1")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGetByID_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "name", "parent_id", "created_at"}).
		AddRow("d1", "u1", "Docs", "p1", now)

	mock.ExpectQuery(`(?s)SELECT .* FROM directories\s+WHERE id=\$1 AND user_id=\$2`).
		WithArgs("d1", "u1").
		WillReturnRows(rows)

	dir, err := repo.GetByID(context.Background(), "u1", "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir.Name != "Docs" || dir.ParentID == nil || *dir.ParentID != "p1" {
		t.Fatalf("unexpected directory: %+v", dir)
	}
}

func TestListChildren(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "name", "parent_id", "created_at"}).
		AddRow("d1", "u1", "alpha", nil, now).
		AddRow("d2", "u1", "beta", nil, now)

	mock.ExpectQuery(`(?s)SELECT .* FROM directories\s+WHERE user_id=\$1 AND parent_id IS NOT DISTINCT FROM \$2\s+ORDER BY name`).
		WithArgs("u1", nil).
		WillReturnRows(rows)

	result, err := repo.ListChildren(context.Background(), "u1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 2 || result[0].Name != "alpha" || result[1].Name != "beta" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestListChildIDs(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id"}).AddRow("c1").AddRow("c2")

	mock.ExpectQuery(`SELECT id FROM directories WHERE parent_id=\$1`).
		WithArgs("d1").
		WillReturnRows(rows)

	ids, err := repo.ListChildIDs(context.Background(), "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "c1" || ids[1] != "c2" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestDelete_WrongRowsAffected(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM directories WHERE id=\$1`).
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "d1"); err == nil {
		t.Fatalf("expected error for zero rows affected")
	}
}

func TestDelete_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM directories WHERE id=\$1`).
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "d1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
