package evaluation

// ══════════════════════════════════════════════════════════════════════════════
// SCORING POLICY
// Все константы начисления в одном месте.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// Baseline - счёт ученика без единой записи.
	Baseline = 100

	// Ceiling - верхняя граница итогового счёта. Нижней границы нет.
	Ceiling = 100
)

// Penalty - дисциплинарная запись, создаваемая из посещаемости.
type Penalty struct {
	StudyPoint      int
	DisciplinePoint int
	Content         string
}

var (
	// AbsencePenalty начисляется за пропуск без уважительной причины.
	AbsencePenalty = Penalty{StudyPoint: -5, DisciplinePoint: -5, Content: "unexcused absence"}

	// LatePenalty заменяет AbsencePenalty, когда пропуск исправлен на опоздание.
	LatePenalty = Penalty{StudyPoint: -2, DisciplinePoint: -2, Content: "late arrival"}
)

// Type штрафов всегда дисциплинарный.
func (Penalty) Type() Type {
	return TypeDiscipline
}
