package refchess

import "github.com/chessdb/chessdb/chessmodel"

// Factory is the refchess chessmodel.Factory implementation.
type Factory struct{}

var _ chessmodel.Factory = Factory{}

func (Factory) StartPosition() chessmodel.Position {
	return StartPosition()
}

func (Factory) FromFEN(fen string) (chessmodel.Position, error) {
	return FromFEN(fen)
}
