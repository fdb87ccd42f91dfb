package processstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-process/internal/catalog"
	"rental-process/internal/common/logger"
	"rental-process/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

const processID = "5f0c7a1e-3b7d-4f7e-9d59-1c0d1f3f9a11"

func newTestStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewPostgresStore(db, logger.NewTestLogger(t))
	store.now = func() time.Time { return fixedNow }
	return store, mock
}

func processColumns() []string {
	return []string{
		"id", "current_step", "applicant_info", "selected_profile", "selected_security",
		"security_fields", "accepted_deposit", "uploaded_docs", "tenant_id", "unit_id",
		"status", "created_at", "updated_at",
	}
}

// ==========================
// Create
// ==========================

func TestPostgresStore_Create_Success(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`INSERT INTO rental_processes`).
		WithArgs(
			sqlmock.AnyArg(), // id
			2,
			[]byte(`{"name":"Ana"}`),
			"",
			"",
			[]byte(`{}`),
			false,
			[]byte(`{}`),
			"t-1",
			"",
			"draft",
			fixedNow,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs("process_created", "rental_process", sqlmock.AnyArg(), sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := store.Create(context.Background(), models.Payload{
		ApplicantInfo: map[string]string{"name": "Ana"},
	}, models.StepBasicInfo, "t-1", "")

	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Create_AuditFailureIsNonCritical(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`INSERT INTO rental_processes`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WillReturnError(errors.New("audit table missing"))

	id, err := store.Create(context.Background(), models.Payload{}, models.StepProfileSelect, "", "")

	assert.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Create_InsertFails(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`INSERT INTO rental_processes`).
		WillReturnError(errors.New("connection reset"))

	id, err := store.Create(context.Background(), models.Payload{}, models.StepBasicInfo, "", "")

	assert.Empty(t, id)
	assert.ErrorIs(t, err, ErrProcessWriteFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Update
// ==========================

func TestPostgresStore_Update_MergesSections(t *testing.T) {
	store, mock := newTestStore(t)

	profile := catalog.ProfileStudent
	accepted := true

	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE rental_processes SET current_step = $1, applicant_info = applicant_info || $2::jsonb, ` +
			`selected_profile = $3, accepted_deposit = $4, unit_id = $5, updated_at = $6 WHERE id = $7`)).
		WithArgs(2, []byte(`{"lastName":"Diaz"}`), "student", true, "u-7", fixedNow, processID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Update(context.Background(), processID, models.Patch{
		ApplicantInfo:   map[string]string{"lastName": "Diaz"},
		SelectedProfile: &profile,
		AcceptedDeposit: &accepted,
	}, models.StepBasicInfo, "", "u-7")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update_NotFound(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE rental_processes SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), processID, models.Patch{}, models.StepDocuments, "", "")

	assert.ErrorIs(t, err, ErrProcessNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update_MalformedID(t *testing.T) {
	store, mock := newTestStore(t)

	err := store.Update(context.Background(), "not-a-uuid", models.Patch{}, models.StepDocuments, "", "")

	assert.ErrorIs(t, err, ErrProcessNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildUpdate_OnlyTimestampWhenEmpty(t *testing.T) {
	query, args, err := buildUpdate(processID, models.Patch{}, models.Step(0), "", "", fixedNow)

	require.NoError(t, err)
	assert.Equal(t, "UPDATE rental_processes SET updated_at = $1 WHERE id = $2", query)
	assert.Equal(t, []interface{}{fixedNow, processID}, args)
}

func TestBuildUpdate_SecurityAndDocs(t *testing.T) {
	security := catalog.SecurityDouble
	query, args, err := buildUpdate(processID, models.Patch{
		SelectedSecurity: &security,
		SecurityFields:   map[string]string{"cosignerConsent": "true"},
		UploadedDocs:     map[string][]models.DocumentRef{"payslips": {{Ref: "r1"}}},
	}, models.StepGuarantee, "t-1", "", fixedNow)

	require.NoError(t, err)
	assert.Contains(t, query, "selected_security = $2")
	assert.Contains(t, query, "security_fields = security_fields || $3::jsonb")
	assert.Contains(t, query, "uploaded_docs = uploaded_docs || $4::jsonb")
	assert.Contains(t, query, "tenant_id = $5")
	assert.Len(t, args, 7)
	assert.Equal(t, []byte(`{"payslips":[{"ref":"r1"}]}`), args[3])
}

// ==========================
// Get
// ==========================

func TestPostgresStore_Get_Success(t *testing.T) {
	store, mock := newTestStore(t)

	rows := sqlmock.NewRows(processColumns()).AddRow(
		processID, 3, []byte(`{"name":"Ana","lastName":"Diaz"}`), "formal", "",
		[]byte(`{}`), true, []byte(`{"idDocument":[{"ref":"doc-1"}]}`), "t-1", nil,
		"draft", fixedNow, fixedNow,
	)
	mock.ExpectQuery(`SELECT id, current_step`).
		WithArgs(processID).
		WillReturnRows(rows)

	p, err := store.Get(context.Background(), processID)

	require.NoError(t, err)
	assert.Equal(t, processID, p.ID)
	assert.Equal(t, models.StepDocuments, p.CurrentStep)
	assert.Equal(t, "Diaz", p.Payload.ApplicantInfo["lastName"])
	assert.Equal(t, catalog.ProfileFormal, p.Payload.SelectedProfile)
	assert.True(t, p.Payload.AcceptedDeposit)
	assert.Equal(t, "doc-1", p.Payload.UploadedDocs["idDocument"][0].Ref)
	assert.Equal(t, "t-1", p.TenantID)
	assert.Empty(t, p.UnitID)
	assert.Equal(t, models.StatusDraft, p.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT id, current_step`).
		WithArgs(processID).
		WillReturnRows(sqlmock.NewRows(processColumns()))

	_, err := store.Get(context.Background(), processID)

	assert.ErrorIs(t, err, ErrProcessNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_QueryError(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT id, current_step`).
		WithArgs(processID).
		WillReturnError(errors.New("too many connections"))

	_, err := store.Get(context.Background(), processID)

	assert.ErrorIs(t, err, ErrProcessReadFailed)
	assert.NotErrorIs(t, err, ErrProcessNotFound)
}

func TestPostgresStore_Get_MalformedIDIsNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "stale-cache-value")

	assert.ErrorIs(t, err, ErrProcessNotFound)
}

// ==========================
// SetStatus
// ==========================

func TestPostgresStore_SetStatus(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE rental_processes SET status`).
		WithArgs("submitted", fixedNow, processID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs("process_submitted", "rental_process", processID, sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.SetStatus(context.Background(), processID, models.StatusSubmitted)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetStatus_NotFound(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE rental_processes SET status`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetStatus(context.Background(), processID, models.StatusSubmitted)

	assert.ErrorIs(t, err, ErrProcessNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetStatus_MalformedID(t *testing.T) {
	store, mock := newTestStore(t)

	err := store.SetStatus(context.Background(), "not-a-uuid", models.StatusSubmitted)

	assert.ErrorIs(t, err, ErrProcessNotFound)
	assert.NotErrorIs(t, err, ErrProcessWriteFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
