// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"

	"github.com/schoolbook/schoolbook-core/internal/domain/evaluation"
	"github.com/schoolbook/schoolbook-core/internal/domain/school"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE SUMMARY QUERIES
// Производные оценки из журнала: сумма за всё время, итог семестра
// (потолок 100, без нижней границы) и сводка по одному классу.
// ══════════════════════════════════════════════════════════════════════════════

// AllClasses - ключ кэша для агрегата по всем классам.
const AllClasses shared.ClassID = 0

// ScoreCache - cache-aside хранилище агрегатов журнала.
// Ошибки кэша не являются ошибками запроса: при сбое читаем из БД.
//
// Каждая инвалидация увеличивает поколение ученика. Поколение читается
// вместе с промахом, до обращения к БД, и возвращается в StoreTally:
// агрегат, посчитанный до записи в журнал, не попадает в кэш после неё.
type ScoreCache interface {
	// Tally возвращает агрегат, текущее поколение и признак попадания.
	Tally(ctx context.Context, studentID shared.UserID, classID shared.ClassID) (t evaluation.Tally, generation int64, found bool, err error)

	// StoreTally сохраняет агрегат, если поколение не изменилось.
	StoreTally(ctx context.Context, studentID shared.UserID, classID shared.ClassID, generation int64, t evaluation.Tally) error
}

// TotalPointsDTO - суммы дельт за всё время.
type TotalPointsDTO struct {
	StudentID       shared.UserID `json:"student_id"`
	StudyTotal      int           `json:"study_total"`
	DisciplineTotal int           `json:"discipline_total"`
}

// SemesterSummaryDTO - итоговые оценки семестра.
type SemesterSummaryDTO struct {
	StudentID       shared.UserID `json:"student_id"`
	FinalStudy      int           `json:"final_study"`
	FinalDiscipline int           `json:"final_discipline"`
}

// ClassSummaryDTO - сводка по одному классу.
type ClassSummaryDTO struct {
	StudentID   shared.UserID  `json:"student_id"`
	ClassID     shared.ClassID `json:"class_id"`
	ClassName   string         `json:"class_name"`
	SubjectName string         `json:"subject_name"`

	FinalStudy      int `json:"final_study"`
	FinalDiscipline int `json:"final_discipline"`

	// Счётчики строк со строго положительной / отрицательной дельтой.
	// Нулевые строки не попадают ни в один счётчик.
	StudyPlusCount       int `json:"study_plus_count"`
	StudyMinusCount      int `json:"study_minus_count"`
	DisciplinePlusCount  int `json:"discipline_plus_count"`
	DisciplineMinusCount int `json:"discipline_minus_count"`
}

// ScoreSummaryHandler обрабатывает запросы производных оценок.
type ScoreSummaryHandler struct {
	evaluations evaluation.Repository
	directory   school.Directory
	cache       ScoreCache
}

// NewScoreSummaryHandler создаёт обработчик. cache может быть nil.
func NewScoreSummaryHandler(evaluations evaluation.Repository, directory school.Directory, cache ScoreCache) *ScoreSummaryHandler {
	return &ScoreSummaryHandler{
		evaluations: evaluations,
		directory:   directory,
		cache:       cache,
	}
}

// TotalPoints возвращает суммы дельт ученика. Отсутствие записей даёт нули.
func (h *ScoreSummaryHandler) TotalPoints(ctx context.Context, actor shared.Principal, studentID shared.UserID) (*TotalPointsDTO, error) {
	if !shared.CanAccessStudent(actor, studentID) {
		return nil, shared.Unauthorized("score", "TotalPoints", "caller may not read this student")
	}

	t, err := h.tally(ctx, studentID, AllClasses)
	if err != nil {
		return nil, err
	}
	return &TotalPointsDTO{
		StudentID:       studentID,
		StudyTotal:      t.StudyTotal,
		DisciplineTotal: t.DisciplineTotal,
	}, nil
}

// SemesterSummary возвращает min(100 + total, 100) по обеим осям.
func (h *ScoreSummaryHandler) SemesterSummary(ctx context.Context, actor shared.Principal, studentID shared.UserID) (*SemesterSummaryDTO, error) {
	if !shared.CanAccessStudent(actor, studentID) {
		return nil, shared.Unauthorized("score", "SemesterSummary", "caller may not read this student")
	}

	t, err := h.tally(ctx, studentID, AllClasses)
	if err != nil {
		return nil, err
	}
	return &SemesterSummaryDTO{
		StudentID:       studentID,
		FinalStudy:      t.FinalStudy(),
		FinalDiscipline: t.FinalDiscipline(),
	}, nil
}

// ClassSummary возвращает сводку по классу. Пустой журнал даёт 100/100 и
// нулевые счётчики; неизвестный класс - ErrClassNotFound.
func (h *ScoreSummaryHandler) ClassSummary(ctx context.Context, actor shared.Principal, studentID shared.UserID, classID shared.ClassID) (*ClassSummaryDTO, error) {
	if !shared.CanAccessStudent(actor, studentID) {
		return nil, shared.Unauthorized("score", "ClassSummary", "caller may not read this student")
	}

	class, err := h.directory.Class(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("class summary: %w", err)
	}

	t, err := h.tally(ctx, studentID, classID)
	if err != nil {
		return nil, err
	}
	return &ClassSummaryDTO{
		StudentID:            studentID,
		ClassID:              classID,
		ClassName:            class.Name,
		SubjectName:          class.SubjectName,
		FinalStudy:           t.FinalStudy(),
		FinalDiscipline:      t.FinalDiscipline(),
		StudyPlusCount:       t.StudyPlus,
		StudyMinusCount:      t.StudyMinus,
		DisciplinePlusCount:  t.DisciplinePlus,
		DisciplineMinusCount: t.DisciplineMinus,
	}, nil
}

// tally читает агрегат через кэш. При ошибке кэша результат не сохраняется:
// без поколения запись нельзя проверить.
func (h *ScoreSummaryHandler) tally(ctx context.Context, studentID shared.UserID, classID shared.ClassID) (evaluation.Tally, error) {
	var (
		generation int64
		cacheable  bool
	)
	if h.cache != nil {
		t, gen, ok, err := h.cache.Tally(ctx, studentID, classID)
		if err == nil && ok {
			return t, nil
		}
		generation, cacheable = gen, err == nil
	}

	var (
		t   evaluation.Tally
		err error
	)
	if classID == AllClasses {
		t, err = h.evaluations.TallyByStudent(ctx, studentID)
	} else {
		t, err = h.evaluations.TallyByStudentInClass(ctx, studentID, classID)
	}
	if err != nil {
		return evaluation.Tally{}, fmt.Errorf("failed to aggregate evaluations: %w", err)
	}

	if cacheable {
		_ = h.cache.StoreTally(ctx, studentID, classID, generation, t)
	}
	return t, nil
}
