package importer

import (
	"fmt"
	"strings"
)

// CleanName возвращает отображаемое имя сущности: Name, или тип, если
// имени нет, с необязательным префиксом "ID<id> ".
func CleanName(name string, id int, ifcType string, prefix bool) string {
	n := strings.TrimSpace(name)
	if n == "" {
		n = ifcType
	}
	if prefix {
		n = fmt.Sprintf("ID%d %s", id, n)
	}
	return n
}
