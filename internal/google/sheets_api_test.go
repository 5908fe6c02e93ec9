package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"kabinet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func setupMockServer(t *testing.T) (*http.ServeMux, *SheetsService) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	return mux, newSheetsService(srv, "users_tid", "bookings_tid", nil)
}

func sampleBooking(id int64) *models.Booking {
	created := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	return &models.Booking{
		ID:            id,
		UserID:        42,
		ServiceID:     1,
		ServiceName:   "Индивидуальная консультация",
		ClientName:    "Анна",
		Phone:         "+79991234567",
		PreferredDate: "15 Марта",
		PreferredTime: "10:00",
		CreatedAt:     created,
	}
}

func decodeValues(t *testing.T, r *http.Request) [][]interface{} {
	t.Helper()
	var vr sheets.ValueRange
	require.NoError(t, json.NewDecoder(r.Body).Decode(&vr))
	return vr.Values
}

func TestSheetsService_TestConnection(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	assert.NoError(t, s.TestConnection(context.Background()))
}

func TestSheetsService_UpdateUsersSheet(t *testing.T) {
	mux, s := setupMockServer(t)
	var got [][]interface{}
	mux.HandleFunc("/v4/spreadsheets/users_tid/values/Users!A1:H2", func(w http.ResponseWriter, r *http.Request) {
		got = decodeValues(t, r)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	users := []*models.User{{TelegramID: 7, Username: "anna", Phone: "+79991234567", IsActive: true, CreatedAt: time.Now(), LastActivity: time.Now()}}
	require.NoError(t, s.UpdateUsersSheet(context.Background(), users))
	require.Len(t, got, 2)
	assert.Equal(t, "Telegram ID", got[0][0])
	assert.Equal(t, "anna", got[1][1])
	assert.Equal(t, true, got[1][5])
}

func TestSheetsService_UpdateUsersSheetWithoutSpreadsheet(t *testing.T) {
	_, s := setupMockServer(t)
	s.usersSheetID = ""
	assert.NoError(t, s.UpdateUsersSheet(context.Background(), nil))
}

func TestSheetsService_WarmUpCache(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{
			Values: [][]interface{}{{"ID"}, {"123"}, {}, {456}},
		})
	})
	require.NoError(t, s.WarmUpCache(context.Background()))

	row, ok := s.getCachedRow(123)
	assert.True(t, ok)
	assert.Equal(t, 2, row)
	row, ok = s.getCachedRow(456)
	assert.True(t, ok)
	assert.Equal(t, 4, row)
}

func TestSheetsService_UpsertBookingAppendsMissingRow(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	var appended [][]interface{}
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		appended = decodeValues(t, r)
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{
			Updates: &sheets.UpdateValuesResponse{UpdatedRange: "Bookings!A10:I10"},
		})
	})

	require.NoError(t, s.UpsertBooking(context.Background(), sampleBooking(789)))
	require.Len(t, appended, 1)
	assert.Equal(t, "Индивидуальная консультация", appended[0][2])
	assert.Equal(t, "15 Марта", appended[0][5])
	assert.Equal(t, "2024-03-10 09:30:00", appended[0][8], "updated_at falls back to created_at")

	row, ok := s.getCachedRow(789)
	assert.True(t, ok)
	assert.Equal(t, 10, row)
}

func TestSheetsService_UpsertBookingUpdatesCachedRow(t *testing.T) {
	mux, s := setupMockServer(t)
	s.setCachedRow(123, 2)
	called := false
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A2:I2", func(w http.ResponseWriter, r *http.Request) {
		called = true
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})
	require.NoError(t, s.UpsertBooking(context.Background(), sampleBooking(123)))
	assert.True(t, called)
}

func TestSheetsService_DeleteBookingRow(t *testing.T) {
	mux, s := setupMockServer(t)
	s.setCachedRow(456, 3)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A3:I3:clear", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ClearValuesResponse{})
	})
	require.NoError(t, s.DeleteBookingRow(context.Background(), 456))
	_, ok := s.getCachedRow(456)
	assert.False(t, ok)
}

func TestSheetsService_DeleteMissingRowIsNoop(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}, {"1"}}})
	})
	assert.NoError(t, s.DeleteBookingRow(context.Background(), 99))
}

func TestSheetsService_FindBookingRow_FullScan(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}, {"999"}}})
	})
	row, err := s.FindBookingRow(context.Background(), 999)
	require.NoError(t, err)
	assert.Equal(t, 2, row)

	_, err = s.FindBookingRow(context.Background(), 0)
	assert.Error(t, err)
}

func TestSheetsService_ReplaceBookingsSheet(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:Z:clear", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ClearValuesResponse{})
	})
	var written [][]interface{}
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A1", func(w http.ResponseWriter, r *http.Request) {
		written = decodeValues(t, r)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	s.setCachedRow(500, 7)
	require.NoError(t, s.ReplaceBookingsSheet(context.Background(), []*models.Booking{sampleBooking(1), sampleBooking(2)}))
	require.Len(t, written, 3)
	assert.Equal(t, "Client Name", written[0][3])

	row, _ := s.getCachedRow(2)
	assert.Equal(t, 3, row)
	_, ok := s.getCachedRow(500)
	assert.False(t, ok, "cache is rebuilt from scratch")
}

func TestSheetsService_FormatBookingsSheet(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.Spreadsheet{
			Sheets: []*sheets.Sheet{{Properties: &sheets.SheetProperties{Title: "Bookings", SheetId: 999}}},
		})
	})
	var req sheets.BatchUpdateSpreadsheetRequest
	mux.HandleFunc("/v4/spreadsheets/bookings_tid:batchUpdate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(sheets.BatchUpdateSpreadsheetResponse{})
	})

	require.NoError(t, s.FormatBookingsSheet(context.Background()))
	require.Len(t, req.Requests, len(bookingHeaders))
	assert.Equal(t, int64(999), req.Requests[0].UpdateDimensionProperties.Range.SheetId)
}

func TestSheetsService_GetSheetIDByNameMissing(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.Spreadsheet{})
	})
	_, err := s.GetSheetIDByName(context.Background(), "bookings_tid", "Bookings")
	assert.Error(t, err)
}

func TestServiceAccountEmail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"client_email":"bot@project.iam.gserviceaccount.com"}`), 0o600))

	email, err := ServiceAccountEmail(path)
	require.NoError(t, err)
	assert.Equal(t, "bot@project.iam.gserviceaccount.com", email)

	_, err = ServiceAccountEmail(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestFirstRowAndCellID(t *testing.T) {
	assert.Equal(t, 10, firstRow("Bookings!A10:I10"))
	assert.Equal(t, 3, firstRow("A3"))
	assert.Equal(t, 0, firstRow("Bookings!A:A"))

	assert.Equal(t, int64(12), cellID(float64(12)))
	assert.Equal(t, int64(12), cellID("12"))
	assert.Equal(t, int64(0), cellID("ID"))
	assert.Equal(t, int64(0), cellID(nil))
}
