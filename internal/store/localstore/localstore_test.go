package localstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pcicdon2/claims-csrt/internal/domain/model"
	"github.com/pcicdon2/claims-csrt/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("ошибка открытия localstore: %v", err)
	}
	return s
}

func putFile(t *testing.T, s *Store, office, adjuster, name string, payload []byte) int64 {
	t.Helper()
	rec := &model.FileRecord{
		Name:         name,
		OriginalName: "original_" + name,
		ContentType:  "image/jpeg",
		Size:         int64(len(payload)),
		Office:       office,
		Adjuster:     adjuster,
		UploadedAt:   time.Now().UTC(),
	}
	id, err := s.Put(context.Background(), rec, payload)
	if err != nil {
		t.Fatalf("ошибка сохранения %s: %v", name, err)
	}
	return id
}

// TestPutGet проверяет round-trip записи через Put/Get.
func TestPutGet(t *testing.T) {
	s := openStore(t, t.TempDir())

	id := putFile(t, s, "butuan", "Santos", "Santos_1.jpg", []byte("данные"))

	rec, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("ошибка Get: %v", err)
	}

	if rec.ID != id {
		t.Errorf("id: ожидалось %d, получено %d", id, rec.ID)
	}
	if rec.Name != "Santos_1.jpg" {
		t.Errorf("name: ожидалось Santos_1.jpg, получено %q", rec.Name)
	}
	if rec.Office != "butuan" || rec.Adjuster != "Santos" {
		t.Errorf("scope: получено (%q, %q)", rec.Office, rec.Adjuster)
	}
	if rec.DownloadedAt != nil {
		t.Error("download_date новой записи должен быть nil")
	}
}

// TestGet_NotFound проверяет сигнальную ошибку для неизвестного id.
func TestGet_NotFound(t *testing.T) {
	s := openStore(t, t.TempDir())

	_, err := s.Get(context.Background(), 12345)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

// TestOpen_RoundTrip проверяет, что payload возвращается байт в байт.
func TestOpen_RoundTrip(t *testing.T) {
	s := openStore(t, t.TempDir())

	payload := []byte{0x00, 0x01, 0xFF, 0xFE, 0x89, 0x50, 0x4E, 0x47}
	id := putFile(t, s, "tandag", "Cruz", "Cruz_1.png", payload)

	rc, rec, err := s.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("ошибка Open: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("payload не совпадает байт в байт")
	}
	if rec.Name != "Cruz_1.png" {
		t.Errorf("name: получено %q", rec.Name)
	}
}

// TestListByOffice_Isolation проверяет, что список офиса не содержит
// файлов другого офиса.
func TestListByOffice_Isolation(t *testing.T) {
	s := openStore(t, t.TempDir())

	putFile(t, s, "butuan", "Santos", "Santos_1.jpg", []byte("а"))
	putFile(t, s, "butuan", "Santos", "Santos_2.jpg", []byte("б"))
	putFile(t, s, "surigao", "Reyes", "Reyes_1.jpg", []byte("в"))

	records, err := s.ListByOffice(context.Background(), "butuan")
	if err != nil {
		t.Fatalf("ошибка ListByOffice: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("ожидалось 2 записи, получено %d", len(records))
	}
	for _, rec := range records {
		if rec.Office != "butuan" {
			t.Errorf("в списке butuan запись офиса %q", rec.Office)
		}
	}
}

// TestListByOffice_Empty проверяет пустой срез для офиса без файлов.
func TestListByOffice_Empty(t *testing.T) {
	s := openStore(t, t.TempDir())

	records, err := s.ListByOffice(context.Background(), "valencia")
	if err != nil {
		t.Fatalf("ошибка ListByOffice: %v", err)
	}
	if records == nil {
		t.Error("ожидался пустой срез, получен nil")
	}
	if len(records) != 0 {
		t.Errorf("ожидалось 0 записей, получено %d", len(records))
	}
}

// TestListByOffice_NewestFirst проверяет сортировку по дате загрузки.
func TestListByOffice_NewestFirst(t *testing.T) {
	s := openStore(t, t.TempDir())
	ctx := context.Background()

	old := &model.FileRecord{
		Name: "Santos_1.jpg", Office: "butuan", Adjuster: "Santos",
		UploadedAt: time.Now().UTC().Add(-time.Hour),
	}
	fresh := &model.FileRecord{
		Name: "Santos_2.jpg", Office: "butuan", Adjuster: "Santos",
		UploadedAt: time.Now().UTC(),
	}

	if _, err := s.Put(ctx, old, []byte("старый")); err != nil {
		t.Fatalf("ошибка Put: %v", err)
	}
	if _, err := s.Put(ctx, fresh, []byte("новый")); err != nil {
		t.Fatalf("ошибка Put: %v", err)
	}

	records, err := s.ListByOffice(ctx, "butuan")
	if err != nil {
		t.Fatalf("ошибка ListByOffice: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ожидалось 2 записи, получено %d", len(records))
	}
	if records[0].Name != "Santos_2.jpg" {
		t.Errorf("первой должна быть новая запись, получена %q", records[0].Name)
	}
}

// TestCountByScope проверяет строгий подсчёт по паре (офис, аджастер).
func TestCountByScope(t *testing.T) {
	s := openStore(t, t.TempDir())
	ctx := context.Background()

	putFile(t, s, "butuan", "Santos", "Santos_1.jpg", []byte("а"))
	putFile(t, s, "butuan", "Santos", "Santos_2.jpg", []byte("б"))
	putFile(t, s, "butuan", "Cruz", "Cruz_1.jpg", []byte("в"))

	count, err := s.CountByScope(ctx, "butuan", "Santos")
	if err != nil {
		t.Fatalf("ошибка CountByScope: %v", err)
	}
	if count != 2 {
		t.Errorf("ожидалось 2, получено %d", count)
	}

	// Регистр имеет значение
	count, err = s.CountByScope(ctx, "butuan", "santos")
	if err != nil {
		t.Fatalf("ошибка CountByScope: %v", err)
	}
	if count != 0 {
		t.Errorf("сравнение без учёта регистра: получено %d", count)
	}

	// Пара без загрузок — ноль, не ошибка
	count, err = s.CountByScope(ctx, "valencia", "Cruz")
	if err != nil {
		t.Fatalf("ошибка CountByScope: %v", err)
	}
	if count != 0 {
		t.Errorf("ожидалось 0, получено %d", count)
	}
}

// TestMarkDownloaded проверяет проставление даты скачивания.
func TestMarkDownloaded(t *testing.T) {
	s := openStore(t, t.TempDir())
	ctx := context.Background()

	id := putFile(t, s, "butuan", "Santos", "Santos_1.jpg", []byte("данные"))

	at := time.Now().UTC().Truncate(time.Millisecond)
	if err := s.MarkDownloaded(ctx, id, at); err != nil {
		t.Fatalf("ошибка MarkDownloaded: %v", err)
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("ошибка Get: %v", err)
	}
	if rec.DownloadedAt == nil {
		t.Fatal("download_date не проставлен")
	}
	if !rec.DownloadedAt.Equal(at) {
		t.Errorf("download_date: ожидалось %v, получено %v", at, rec.DownloadedAt)
	}

	if err := s.MarkDownloaded(ctx, 999, at); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

// TestDelete_Twice проверяет семантику at-most-once удаления.
func TestDelete_Twice(t *testing.T) {
	s := openStore(t, t.TempDir())
	ctx := context.Background()

	id := putFile(t, s, "butuan", "Santos", "Santos_1.jpg", []byte("данные"))

	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("первое удаление: %v", err)
	}

	err := s.Delete(ctx, id)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("повторное удаление: ожидалась ErrNotFound, получено %v", err)
	}

	if _, err := s.Get(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("запись видна после удаления: %v", err)
	}
}

// TestReopen_RebuildsIndex проверяет пересборку индекса из документов
// при повторном открытии директории.
func TestReopen_RebuildsIndex(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openStore(t, dir)
	id := putFile(t, s, "butuan", "Santos", "Santos_1.jpg", []byte("переживёт рестарт"))
	s.Close()

	reopened := openStore(t, dir)

	rec, err := reopened.Get(ctx, id)
	if err != nil {
		t.Fatalf("запись потеряна после переоткрытия: %v", err)
	}
	if rec.Name != "Santos_1.jpg" {
		t.Errorf("name: получено %q", rec.Name)
	}

	rc, _, err := reopened.Open(ctx, id)
	if err != nil {
		t.Fatalf("ошибка Open после переоткрытия: %v", err)
	}
	defer rc.Close()

	got, _ := io.ReadAll(rc)
	if string(got) != "переживёт рестарт" {
		t.Error("payload потерян после переоткрытия")
	}
}
