// sequencer.go — присвоение порядковых имён файлам пакета загрузки.
//
// Имя файла: {adjuster}_{seq}.{ext}, где seq — порядковый номер в
// рамках пары (офис, аджастер). Счётчик читается из хранилища ОДИН
// раз на пакет, дальше инкрементируется локально: пакет из N файлов
// при текущем счётчике C получает номера C+1 … C+N без повторного
// обращения к хранилищу. Параллельные сессии могут прочитать один и
// тот же счётчик и получить совпадающие имена — имя не уникальный
// ключ, идентичность файла определяет только id.
package service

import (
	"context"
	"fmt"

	"github.com/pcicdon2/claims-csrt/internal/domain/model"
	"github.com/pcicdon2/claims-csrt/internal/store"
)

// Sequencer — генератор порядковых имён файлов.
type Sequencer struct {
	store store.Store
}

// NewSequencer создаёт секвенсор поверх хранилища.
func NewSequencer(st store.Store) *Sequencer {
	return &Sequencer{store: st}
}

// AssignNames присваивает отображаемые имена файлам пакета.
// Файлы с уже заданным именем пропускаются и номер не расходуют:
// нумеруются только файлы с пустым Name.
func (s *Sequencer) AssignNames(ctx context.Context, office, adjuster string, files []model.UploadFile) error {
	count, err := s.store.CountByScope(ctx, office, adjuster)
	if err != nil {
		return fmt.Errorf("ошибка чтения счётчика файлов: %w", err)
	}

	seq := count
	for i := range files {
		if files[i].Name != "" {
			continue
		}
		seq++
		files[i].Name = model.DisplayName(adjuster, seq, files[i].OriginalName)
	}

	return nil
}
