package solana

import "context"

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeProgram subscribes to account changes of a program.
	SubscribeProgram(ctx context.Context, programID string, opts *ProgramAccountsOpts) (<-chan ProgramNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// ProgramNotification represents a programSubscribe message.
type ProgramNotification struct {
	Pubkey  string
	Slot    int64
	Account AccountInfo
}
