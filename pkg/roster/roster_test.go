package roster

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/civichq/resultwatch/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"
)

type fakeRosterStore struct {
	councils   []db.AreaCouncilRow
	candidates []db.CandidateRow
	position   string
}

func (s *fakeRosterStore) UpsertAreaCouncil(_ context.Context, row *db.AreaCouncilRow) error {
	s.councils = append(s.councils, *row)
	return nil
}

func (s *fakeRosterStore) ReplaceCandidates(_ context.Context, positionType string, rows []db.CandidateRow) error {
	s.position = positionType
	s.candidates = rows
	return nil
}

func writeWorkbook(t *testing.T) string {
	t.Helper()
	wb := excelize.NewFile()
	defer func() { _ = wb.Close() }()

	_, err := wb.NewSheet(overviewSheet)
	require.NoError(t, err)
	// Rows 1-4 are title and headers; data starts at row 5.
	require.NoError(t, wb.SetSheetRow(overviewSheet, "A5",
		&[]any{"AMAC", 12, 580, 814000, 14, 12}))
	require.NoError(t, wb.SetSheetRow(overviewSheet, "A6",
		&[]any{"Bwari", 10, 402, "", 11, 10}))
	require.NoError(t, wb.SetSheetRow(overviewSheet, "A7",
		&[]any{"TOTAL", 22, 982, 814000, 25, 22}))

	_, err = wb.NewSheet(candidatesSheet)
	require.NoError(t, err)
	require.NoError(t, wb.SetSheetRow(candidatesSheet, "A3",
		&[]any{"S/N", "Area Council", "Candidate", "Party", "Abbrev", "Status", "Gender", "Notes"}))
	require.NoError(t, wb.SetSheetRow(candidatesSheet, "A4",
		&[]any{1, "AMAC", "Jane Musa", "All Progressives Congress", "APC", "Active", "F", ""}))
	require.NoError(t, wb.SetSheetRow(candidatesSheet, "A5",
		&[]any{2, "AMAC", "John Bello", "Peoples Democratic Party", "PDP", "Active", "M", ""}))
	// No serial: a section header, skipped.
	require.NoError(t, wb.SetSheetRow(candidatesSheet, "A6",
		&[]any{"", "Bwari", "", "", "", "", "", ""}))
	require.NoError(t, wb.SetSheetRow(candidatesSheet, "A7",
		&[]any{3, "Bwari", "Ada Obi", "Labour Party", "LP", "Active", "F", "Replaced nominee"}))

	path := filepath.Join(t.TempDir(), "roster.xlsx")
	require.NoError(t, wb.SaveAs(path))
	return path
}

func TestImport(t *testing.T) {
	store := &fakeRosterStore{}
	path := writeWorkbook(t)

	require.NoError(t, Import(context.Background(), path, store, zaptest.NewLogger(t)))

	require.Len(t, store.councils, 2)
	amac := store.councils[0]
	assert.Equal(t, "AMAC", amac.Name)
	assert.Equal(t, uint32(12), amac.TotalWards)
	assert.Equal(t, uint32(580), amac.PollingUnits)
	assert.Equal(t, "814000", amac.RegisteredVoters)
	assert.Equal(t, uint32(14), amac.ChairmanshipCandidates)
	// Missing voter counts fall back to N/A.
	assert.Equal(t, "N/A", store.councils[1].RegisteredVoters)

	assert.Equal(t, positionChairmanship, store.position)
	require.Len(t, store.candidates, 3)
	assert.Equal(t, "Jane Musa", store.candidates[0].CandidateName)
	assert.Equal(t, "LP", store.candidates[2].PartyAbbrev)
	assert.Equal(t, positionChairmanship, store.candidates[0].PositionType)
}

func TestImportMissingFile(t *testing.T) {
	store := &fakeRosterStore{}
	err := Import(context.Background(), filepath.Join(t.TempDir(), "nope.xlsx"), store, zaptest.NewLogger(t))
	assert.Error(t, err)
}
