package adp

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/robalyx/draftguard/internal/database/types"
)

var (
	ErrMissingColumn   = errors.New("rankings export is missing a required column")
	ErrNoRankings      = errors.New("rankings export has no rows with an adp")
	ErrInvalidPlayerID = errors.New("invalid player id")
)

// Column aliases accepted in a rankings export header, matched case-insensitively.
var (
	idColumns       = []string{"id", "player_id", "playerid"}
	adpColumns      = []string{"adp"}
	firstColumns    = []string{"firstname", "first_name"}
	lastColumns     = []string{"lastname", "last_name"}
	nameColumns     = []string{"name", "player", "player_name"}
	positionColumns = []string{"slotname", "position", "pos"}
	teamColumns     = []string{"teamname", "team"}
)

// LoadRankingsCSV parses a rankings export into ADP rows. The header must name
// an id and an adp column. Rows whose adp is blank or "-" have no ADP and are skipped.
func LoadRankingsCSV(r io.Reader) ([]*types.PlayerADP, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	index := make(map[string]int, len(headers))
	for i, header := range headers {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")))
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}

	idCol := findColumn(index, idColumns)
	adpCol := findColumn(index, adpColumns)
	if idCol < 0 {
		return nil, fmt.Errorf("%w: id", ErrMissingColumn)
	}
	if adpCol < 0 {
		return nil, fmt.Errorf("%w: adp", ErrMissingColumn)
	}

	firstCol := findColumn(index, firstColumns)
	lastCol := findColumn(index, lastColumns)
	nameCol := findColumn(index, nameColumns)
	positionCol := findColumn(index, positionColumns)
	teamCol := findColumn(index, teamColumns)

	now := time.Now().UTC()
	seen := make(map[string]int)
	var rows []*types.PlayerADP

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record at line %d: %w", line, err)
		}

		playerID := field(record, idCol)
		if playerID == "" {
			return nil, fmt.Errorf("%w at line %d", ErrInvalidPlayerID, line)
		}

		rawADP := field(record, adpCol)
		if rawADP == "" || rawADP == "-" {
			continue
		}

		adp, err := strconv.ParseFloat(rawADP, 64)
		if err != nil || adp <= 0 {
			return nil, fmt.Errorf("invalid adp %q at line %d", rawADP, line)
		}

		name := field(record, nameCol)
		if name == "" {
			name = strings.TrimSpace(field(record, firstCol) + " " + field(record, lastCol))
		}

		row := &types.PlayerADP{
			PlayerID:  playerID,
			Name:      name,
			Position:  field(record, positionCol),
			Team:      field(record, teamCol),
			ADP:       adp,
			UpdatedAt: now,
		}

		// Later rows win so the upsert batch never repeats a key.
		if i, exists := seen[playerID]; exists {
			rows[i] = row
			continue
		}
		seen[playerID] = len(rows)
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrNoRankings
	}
	return rows, nil
}

func findColumn(index map[string]int, names []string) int {
	for _, name := range names {
		if i, ok := index[name]; ok {
			return i
		}
	}
	return -1
}

func field(record []string, col int) string {
	if col < 0 || col >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[col])
}
