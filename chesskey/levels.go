package chesskey

// Level classifies the origin of an imported game.
type Level uint8

const (
	LevelHuman Level = iota
	LevelEngine
	LevelServer
)

func (l Level) String() string {
	switch l {
	case LevelHuman:
		return "human"
	case LevelEngine:
		return "engine"
	case LevelServer:
		return "server"
	default:
		return "unknown"
	}
}

// ParseLevel maps the JSON wire strings from spec.md §6 to a Level.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "human":
		return LevelHuman, true
	case "engine":
		return LevelEngine, true
	case "server":
		return LevelServer, true
	default:
		return 0, false
	}
}

// NumLevels is the number of distinct Level values; used to size per-level
// arrays (header stores, stats).
const NumLevels = 3

// Result classifies the outcome of a game from White's perspective.
type Result uint8

const (
	ResultWhiteWin Result = iota
	ResultBlackWin
	ResultDraw
)

func (r Result) String() string {
	switch r {
	case ResultWhiteWin:
		return "win"
	case ResultBlackWin:
		return "loss"
	case ResultDraw:
		return "draw"
	default:
		return "unknown"
	}
}

// ParseResult maps the JSON wire strings from spec.md §6 to a Result.
func ParseResult(s string) (Result, bool) {
	switch s {
	case "win":
		return ResultWhiteWin, true
	case "loss":
		return ResultBlackWin, true
	case "draw":
		return ResultDraw, true
	default:
		return 0, false
	}
}

// NumResults is the number of distinct Result values.
const NumResults = 3

// ResultFromTag maps a PGN-style result tag ("1-0", "0-1", "1/2-1/2") to a
// Result. ok is false for games with no usable result (e.g. "*"), which
// import must skip per spec.md §4.10.
func ResultFromTag(tag string) (Result, bool) {
	switch tag {
	case "1-0":
		return ResultWhiteWin, true
	case "0-1":
		return ResultBlackWin, true
	case "1/2-1/2":
		return ResultDraw, true
	default:
		return 0, false
	}
}
