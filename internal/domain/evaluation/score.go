package evaluation

// FinalScore переводит сумму дельт в итоговый счёт: min(Baseline+total, Ceiling).
// Снизу счёт не ограничен и может быть отрицательным.
func FinalScore(total int) int {
	score := Baseline + total
	if score > Ceiling {
		return Ceiling
	}
	return score
}

// Tally - агрегат по набору записей журнала.
type Tally struct {
	Rows            int
	StudyTotal      int
	DisciplineTotal int

	// Счётчики строго положительных и строго отрицательных дельт.
	// Нулевые дельты не попадают ни в один из них.
	StudyPlus       int
	StudyMinus      int
	DisciplinePlus  int
	DisciplineMinus int
}

// Add учитывает одну запись.
func (t *Tally) Add(e *Evaluation) {
	t.Rows++
	t.StudyTotal += e.StudyPoint
	t.DisciplineTotal += e.DisciplinePoint

	switch {
	case e.StudyPoint > 0:
		t.StudyPlus++
	case e.StudyPoint < 0:
		t.StudyMinus++
	}
	switch {
	case e.DisciplinePoint > 0:
		t.DisciplinePlus++
	case e.DisciplinePoint < 0:
		t.DisciplineMinus++
	}
}

// TallyOf агрегирует список записей.
func TallyOf(evals []*Evaluation) Tally {
	var t Tally
	for _, e := range evals {
		t.Add(e)
	}
	return t
}

// FinalStudy возвращает итоговый учебный счёт.
func (t Tally) FinalStudy() int {
	return FinalScore(t.StudyTotal)
}

// FinalDiscipline возвращает итоговый дисциплинарный счёт.
func (t Tally) FinalDiscipline() int {
	return FinalScore(t.DisciplineTotal)
}
