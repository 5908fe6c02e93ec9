package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kabinet/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	sheetUsers    = "Пользователи"
	sheetBookings = "Заявки"
)

// exportToExcel создает Excel файл с пользователями и заявками
func (b *Bot) exportToExcel(ctx context.Context) (string, error) {
	if err := os.MkdirAll(b.config.Exports.Path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	users, err := b.users.AllUsers(ctx)
	if err != nil {
		return "", fmt.Errorf("error getting users: %w", err)
	}
	bookings, err := b.bookings.AllBookings(ctx)
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return "", fmt.Errorf("error creating style: %w", err)
	}

	if err := writeSheet(f, sheetUsers, headerStyle,
		[]string{"Telegram ID", "Username", "Имя", "Фамилия", "Телефон", "Активен", "Последняя активность", "Создан"},
		len(users), func(i int) []interface{} {
			return userRow(users[i])
		}); err != nil {
		return "", err
	}
	if err := writeSheet(f, sheetBookings, headerStyle,
		[]string{"ID", "Telegram ID", "Клиент", "Телефон", "Услуга", "Дата", "Время", "Создана"},
		len(bookings), func(i int) []interface{} {
			return bookingRow(bookings[i])
		}); err != nil {
		return "", err
	}

	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex(sheetUsers); err == nil {
		f.SetActiveSheet(idx)
	}

	fileName := fmt.Sprintf("export_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(b.config.Exports.Path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	b.logger.Info().Str("file_path", filePath).Int("users", len(users)).Int("bookings", len(bookings)).Msg("Excel file created")
	return filePath, nil
}

func writeSheet(f *excelize.File, name string, headerStyle int, headers []string, rows int, row func(i int) []interface{}) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("error creating sheet %s: %w", name, err)
	}
	if err := f.SetSheetRow(name, "A1", &headers); err != nil {
		return fmt.Errorf("error writing headers: %w", err)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(name, "A1", lastHeader, headerStyle)

	for i := 0; i < rows; i++ {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := row(i)
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", i+2, err)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetColWidth(name, "A", lastCol, 20)
	return nil
}

func userRow(u *models.User) []interface{} {
	active := "да"
	if !u.IsActive {
		active = "нет"
	}
	return []interface{}{
		u.TelegramID,
		u.Username,
		u.FirstName,
		u.LastName,
		u.Phone,
		active,
		u.LastActivity.Format("02.01.2006 15:04"),
		u.CreatedAt.Format("02.01.2006 15:04"),
	}
}

func bookingRow(bk *models.Booking) []interface{} {
	return []interface{}{
		bk.ID,
		bk.UserID,
		bk.ClientName,
		bk.Phone,
		bk.ServiceName,
		bk.PreferredDate,
		bk.PreferredTime,
		bk.CreatedAt.Format("02.01.2006 15:04"),
	}
}
