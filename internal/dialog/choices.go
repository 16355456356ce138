package dialog

import (
	"fmt"
	"strconv"

	"github.com/busly/routafare/internal/schedule"
)

func routeRows(names []string) [][]Choice {
	rows := make([][]Choice, 0, len(names)+1)
	for _, name := range names {
		rows = append(rows, []Choice{{Label: "🚌 " + name, Key: KeySelectRoute, Payload: name}})
	}
	return append(rows, cancelRow())
}

func attributeRows() [][]Choice {
	rows := optionRows("👤 ", AgeGroups, KeySelectAge, 2)
	return append(rows, optionRows("🚦 ", TrafficLevels, KeySelectTraffic, 3)...)
}

func optionRows(prefix string, opts []Option, key string, perRow int) [][]Choice {
	var rows [][]Choice
	var row []Choice
	for _, o := range opts {
		row = append(row, Choice{Label: prefix + o.Label, Key: key, Payload: strconv.Itoa(o.Index)})
		if len(row) == perRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

func busRows(matches []schedule.BusService) [][]Choice {
	rows := make([][]Choice, 0, len(matches)+1)
	for _, svc := range matches {
		label := fmt.Sprintf("🚌 %s • %s (%s)", svc.ID, svc.RouteName, svc.Direction)
		rows = append(rows, []Choice{{Label: label, Key: KeySelectBus, Payload: svc.ID}})
	}
	return append(rows, cancelRow())
}

func confirmRows() [][]Choice {
	return [][]Choice{{
		{Label: "✅ Confirm", Key: KeyConfirm},
		{Label: "❌ Cancel", Key: KeyCancel},
	}}
}

func cancelRow() []Choice {
	return []Choice{{Label: "❌ Cancel", Key: KeyCancel}}
}
