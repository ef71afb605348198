// Пакет model — доменные модели сервиса документов ПЭО.
// FileRecord — единая структура записи файла, используется как
// in-memory представление, как формат record.json локального бэкенда
// и как строка таблицы peo_files серверного бэкенда.
package model

import (
	"math/rand"
	"path"
	"strconv"
	"strings"
	"time"
)

// Office — региональный офис ПЭО, scope всех файлов.
type Office struct {
	// Code — машиночитаемый код офиса (ключ scope)
	Code string `json:"code"`
	// DisplayName — человекочитаемое название для списков
	DisplayName string `json:"displayName"`
}

// Фиксированный реестр из пяти офисов. Принадлежит конфигурации
// домена, а не хранилищу: бэкенды не знают список офисов.
var offices = []Office{
	{Code: "butuan", DisplayName: "PEO BUTUAN"},
	{Code: "sanfrancisco", DisplayName: "PEO SAN FRANCISCO"},
	{Code: "surigao", DisplayName: "PEO SURIGAO"},
	{Code: "tandag", DisplayName: "PEO TANDAG"},
	{Code: "valencia", DisplayName: "PEO VALENCIA"},
}

// Offices возвращает копию реестра офисов.
func Offices() []Office {
	result := make([]Office, len(offices))
	copy(result, offices)
	return result
}

// ValidOffice проверяет, что код офиса входит в реестр.
func ValidOffice(code string) bool {
	for _, o := range offices {
		if o.Code == code {
			return true
		}
	}
	return false
}

// FileRecord — запись загруженного файла.
// JSON-теги соответствуют строкам таблицы peo_files исходной системы:
// клиенты читают поля upload_date/download_date/peo_office как есть.
type FileRecord struct {
	// ID — единственный идентификатор для поиска, удаления, просмотра.
	// Локальный бэкенд: миллисекундный timestamp с случайным jitter
	// (коллизии маловероятны, но формально не исключены — хранилище
	// отклоняет дубликат). Серверный бэкенд: auto-increment из БД.
	ID int64 `json:"id"`

	// Name — отображаемое имя {adjuster}_{seq}.{ext}, присваивается
	// секвенсором при загрузке. НЕ имя, присланное пользователем.
	Name string `json:"name"`

	// OriginalName — оригинальное имя файла, хранится только
	// для происхождения.
	OriginalName string `json:"original_name"`

	// FilePath — относительный путь байтов на диске
	// ({office}/{adjuster}/{name}); пустой в локальном бэкенде,
	// где payload хранится внутри записи.
	FilePath string `json:"file_path,omitempty"`

	// ContentType — MIME-тип файла
	ContentType string `json:"type"`

	// Size — размер файла в байтах
	Size int64 `json:"size"`

	// Office — код офиса ПЭО (ключ scope)
	Office string `json:"peo_office"`

	// Adjuster — имя аджастера, свободный текст. Не нормализуется,
	// сравнение строгое с учётом регистра.
	Adjuster string `json:"adjuster"`

	// UploadedAt — дата и время сохранения (UTC)
	UploadedAt time.Time `json:"upload_date"`

	// DownloadedAt — время последнего скачивания, nil пока файл
	// ни разу не скачивался. Обновляется при каждом скачивании.
	DownloadedAt *time.Time `json:"download_date"`

	// AutoDeleteScheduled — колонка исходной схемы, сохранена для
	// совместимости. Всегда false: таймер отложенного удаления
	// живёт в процессе и не персистится.
	AutoDeleteScheduled bool `json:"auto_delete_scheduled"`
}

// UploadFile — один файл пакета загрузки, как его передаёт
// слой-коллаборатор (UI): сырые байты плюс метаданные.
type UploadFile struct {
	// Name — отображаемое имя, если клиент его уже вычислил.
	// Пустое — имя присвоит секвенсор.
	Name string
	// Payload — сырые байты файла (data-URL уже декодирован)
	Payload []byte
	// OriginalName — имя файла у пользователя
	OriginalName string
	// ContentType — MIME-тип
	ContentType string
	// Size — заявленный размер в байтах
	Size int64
}

// DefaultExtension — расширение, подставляемое когда оригинальное
// имя файла не содержит точки. Явная политика для неопределённой
// границы исходной системы.
const DefaultExtension = "bin"

// ExtensionOf возвращает расширение оригинального имени файла
// без точки; для имени без расширения — DefaultExtension.
func ExtensionOf(originalName string) string {
	ext := path.Ext(originalName)
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return DefaultExtension
	}
	return ext
}

// DisplayName строит отображаемое имя файла из scope и порядкового
// номера: {adjuster}_{seq}.{ext}.
func DisplayName(adjuster string, seq int, originalName string) string {
	return adjuster + "_" + strconv.Itoa(seq) + "." + ExtensionOf(originalName)
}

// NewLocalID генерирует идентификатор для локального бэкенда:
// миллисекундный timestamp, умноженный на 1000, плюс случайный
// jitter 0-999. Повторяет схему исходной системы
// (Date.now() + Math.random()); остаточный риск коллизии
// задокументирован, хранилище отклоняет дубликаты.
func NewLocalID(now time.Time) int64 {
	return now.UnixMilli()*1000 + rand.Int63n(1000)
}
