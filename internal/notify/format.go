package notify

import (
	"fmt"
	"time"
)

var monthsPtBR = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// FormatDate renders t as "14 de outubro, às 15:00h" in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("%02d de %s, às %02d:%02dh", t.Day(), monthsPtBR[t.Month()-1], t.Hour(), t.Minute())
}
