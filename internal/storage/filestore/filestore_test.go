package filestore

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// TestNew_CreatesDirectory проверяет создание директории данных.
func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	fs, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	if fs.DataDir() != dir {
		t.Errorf("ожидался путь %s, получен %s", dir, fs.DataDir())
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("путь не является директорией")
	}
}

// TestStoragePath проверяет построение относительного пути байтов.
func TestStoragePath(t *testing.T) {
	got := StoragePath("butuan", "Santos", "Santos_1.jpg")
	want := filepath.Join("butuan", "Santos", "Santos_1.jpg")
	if got != want {
		t.Errorf("ожидалось %q, получено %q", want, got)
	}
}

// TestSaveFile проверяет запись байтов с созданием промежуточных
// директорий офиса и аджастера.
func TestSaveFile(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	content := []byte("Тестовые данные документа заявки.")
	path := StoragePath("butuan", "Santos", "Santos_1.jpg")

	size, err := fs.SaveFile(path, bytes.NewReader(content))
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), size)
	}

	data, err := os.ReadFile(fs.FullPath(path))
	if err != nil {
		t.Fatalf("ошибка чтения файла: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое файла не совпадает")
	}
}

// TestSaveFile_Overwrite проверяет, что повторная запись по тому же
// пути заменяет содержимое атомарно.
func TestSaveFile_Overwrite(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	path := StoragePath("tandag", "Cruz", "Cruz_1.pdf")

	if _, err := fs.SaveFile(path, bytes.NewReader([]byte("первая версия"))); err != nil {
		t.Fatalf("ошибка первой записи: %v", err)
	}
	if _, err := fs.SaveFile(path, bytes.NewReader([]byte("вторая версия"))); err != nil {
		t.Fatalf("ошибка второй записи: %v", err)
	}

	data, err := os.ReadFile(fs.FullPath(path))
	if err != nil {
		t.Fatalf("ошибка чтения файла: %v", err)
	}
	if string(data) != "вторая версия" {
		t.Errorf("ожидалось содержимое второй записи, получено %q", data)
	}
}

// TestReadFile проверяет чтение сохранённого файла через ReadCloser.
func TestReadFile(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	content := []byte("содержимое для чтения")
	path := StoragePath("surigao", "Reyes", "Reyes_1.png")

	if _, err := fs.SaveFile(path, bytes.NewReader(content)); err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	f, err := fs.ReadFile(path)
	if err != nil {
		t.Fatalf("ошибка открытия: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое не совпадает")
	}
}

// TestReadFile_NotFound проверяет ошибку чтения несуществующего файла.
func TestReadFile_NotFound(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	if _, err := fs.ReadFile(StoragePath("butuan", "Santos", "нет.jpg")); err == nil {
		t.Error("ожидалась ошибка для несуществующего файла")
	}
}

// TestDeleteFile проверяет удаление и его идемпотентность.
func TestDeleteFile(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	path := StoragePath("valencia", "Lopez", "Lopez_1.jpg")
	if _, err := fs.SaveFile(path, bytes.NewReader([]byte("данные"))); err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if err := fs.DeleteFile(path); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if fs.FileExists(path) {
		t.Error("файл не удалён")
	}

	// Повторное удаление — не ошибка
	if err := fs.DeleteFile(path); err != nil {
		t.Errorf("повторное удаление должно быть идемпотентным: %v", err)
	}
}

// TestSaveFile_NoTempLeftovers проверяет, что после записи не
// остаётся временных файлов.
func TestSaveFile_NoTempLeftovers(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	path := StoragePath("butuan", "Santos", "Santos_1.jpg")
	if _, err := fs.SaveFile(path, bytes.NewReader([]byte("данные"))); err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	dir := filepath.Dir(fs.FullPath(path))
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ошибка чтения директории: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("ожидался 1 файл в директории, получено %d", len(entries))
	}
}
