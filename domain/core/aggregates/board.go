package aggregates

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"flowboard/domain/config"
	"flowboard/domain/core/entities"
	"flowboard/domain/core/valueobjects"
	"flowboard/domain/events"
	pkgerrors "flowboard/pkg/errors"
)

// ConnectResult describes the outcome of a Connect call. Rejections are not
// errors; callers decide whether to surface them.
type ConnectResult int

const (
	Connected ConnectResult = iota
	RejectedSelfLoop
	AlreadyConnected
	UnknownNode
)

func (r ConnectResult) String() string {
	switch r {
	case Connected:
		return "connected"
	case RejectedSelfLoop:
		return "rejected_self_loop"
	case AlreadyConnected:
		return "already_connected"
	case UnknownNode:
		return "unknown_node"
	default:
		return fmt.Sprintf("connect_result(%d)", int(r))
	}
}

// Edge is a derived, directed connection between two blocks
type Edge struct {
	From  valueobjects.NodeID
	To    valueobjects.NodeID
	Color valueobjects.Color
}

// BlockPatch carries the optional fields of a block update
type BlockPatch struct {
	Title   *string
	Content *string
	Color   *valueobjects.Color
}

// IsEmpty reports whether the patch sets nothing
func (p BlockPatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Color == nil
}

// Board is the aggregate root for one flow board. It is the sole owner of the
// blocks and their connections; edges are always derived from block state.
type Board struct {
	id      valueobjects.BoardID
	name    string
	blocks  []*entities.Block
	index   map[valueobjects.NodeID]*entities.Block
	config  *config.CanvasConfig
	rng     *rand.Rand
	now     func() time.Time
	spawned int
	version int
	events  []events.DomainEvent
}

// BoardOption customises a board at construction
type BoardOption func(*Board)

// WithRand sets the random source used for spawn positions
func WithRand(r *rand.Rand) BoardOption {
	return func(b *Board) {
		b.rng = r
	}
}

// WithClock sets the clock used to timestamp events
func WithClock(now func() time.Time) BoardOption {
	return func(b *Board) {
		b.now = now
	}
}

// WithCanvasConfig overrides the default canvas rules
func WithCanvasConfig(cfg *config.CanvasConfig) BoardOption {
	return func(b *Board) {
		if cfg != nil {
			b.config = cfg
		}
	}
}

// NewBoard creates an empty board
func NewBoard(id valueobjects.BoardID, name string, opts ...BoardOption) *Board {
	b := &Board{
		id:     id,
		name:   name,
		blocks: []*entities.Block{},
		index:  make(map[valueobjects.NodeID]*entities.Block),
		config: config.DefaultCanvasConfig(),
		now:    time.Now,
		events: []events.DomainEvent{},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.rng == nil {
		b.rng = rand.New(rand.NewSource(b.now().UnixNano()))
	}
	return b
}

// ReconstructBoard rebuilds a board from stored block states without raising events
func ReconstructBoard(id valueobjects.BoardID, name string, states []entities.BlockState, opts ...BoardOption) (*Board, error) {
	b := NewBoard(id, name, opts...)
	if err := b.replace(states); err != nil {
		return nil, err
	}
	return b, nil
}

// ID returns the board identifier
func (b *Board) ID() valueobjects.BoardID {
	return b.id
}

// Name returns the board name
func (b *Board) Name() string {
	return b.name
}

// Version increases by one for every effective mutation
func (b *Board) Version() int {
	return b.version
}

// Config returns the canvas rules in effect for this board
func (b *Board) Config() *config.CanvasConfig {
	return b.config
}

// Len returns the number of blocks
func (b *Board) Len() int {
	return len(b.blocks)
}

// Blocks returns the blocks in creation order
func (b *Board) Blocks() []*entities.Block {
	out := make([]*entities.Block, len(b.blocks))
	copy(out, b.blocks)
	return out
}

// Block looks up a block by id
func (b *Board) Block(id valueobjects.NodeID) (*entities.Block, bool) {
	block, ok := b.index[id]
	return block, ok
}

// Position returns the world position of a block
func (b *Board) Position(id valueobjects.NodeID) (valueobjects.Position, bool) {
	block, ok := b.index[id]
	if !ok {
		return valueobjects.Position{}, false
	}
	return block.Position(), true
}

// CreateNode adds a block with a fresh id at a pseudo-random position inside
// the spawn region. A blank title is rejected and nothing is created.
func (b *Board) CreateNode(title, content string) (*entities.Block, error) {
	x := b.config.SpawnMinX + b.rng.Float64()*b.config.SpawnWidth
	y := b.config.SpawnMinY + b.rng.Float64()*b.config.SpawnHeight
	return b.CreateNodeAt(title, content, x, y)
}

// CreateNodeAt adds a block at an explicit world position
func (b *Board) CreateNodeAt(title, content string, x, y float64) (*entities.Block, error) {
	text, err := valueobjects.NewBlockTextWithConfig(title, content, b.config)
	if err != nil {
		return nil, pkgerrors.GetAppError(err).WithCode(codeFor(title))
	}
	position, err := valueobjects.NewPosition(x, y)
	if err != nil {
		return nil, pkgerrors.GetAppError(err).WithCode(pkgerrors.CodeInvalidInput)
	}
	if b.config.MaxBlocksPerBoard > 0 && len(b.blocks) >= b.config.MaxBlocksPerBoard {
		return nil, pkgerrors.NewValidationError(
			fmt.Sprintf("board cannot hold more than %d blocks", b.config.MaxBlocksPerBoard)).
			WithCode(pkgerrors.CodeBoardTooLarge)
	}

	block := entities.NewBlock(valueobjects.NewNodeID(), text, position, valueobjects.PaletteColor(b.spawned))
	b.spawned++
	b.blocks = append(b.blocks, block)
	b.index[block.ID()] = block

	b.version++
	b.addEvent(events.NewBlockCreated(b.id, b.version, block.ID(), block.Title(), b.now()))
	return block, nil
}

// UpdateNode applies a patch to a block. Unknown ids are a no-op. The return
// value reports whether the block changed.
func (b *Board) UpdateNode(id valueobjects.NodeID, patch BlockPatch) (bool, error) {
	block, ok := b.index[id]
	if !ok || patch.IsEmpty() {
		return false, nil
	}

	text, err := block.Text().Edit(patch.Title, patch.Content, b.config)
	if err != nil {
		title := block.Title()
		if patch.Title != nil {
			title = *patch.Title
		}
		return false, pkgerrors.GetAppError(err).WithCode(codeFor(title))
	}
	if patch.Color != nil && !patch.Color.IsValid() {
		return false, pkgerrors.NewValidationError("unknown color: " + string(*patch.Color)).
			WithCode(pkgerrors.CodeInvalidColor)
	}

	var fields []string
	if block.Title() != text.Title() {
		fields = append(fields, "title")
	}
	if block.Content() != text.Content() {
		fields = append(fields, "content")
	}
	block.SetText(text)
	if patch.Color != nil && block.SetColor(*patch.Color) {
		fields = append(fields, "color")
	}
	if len(fields) == 0 {
		return false, nil
	}

	b.version++
	b.addEvent(events.NewBlockUpdated(b.id, b.version, id, fields, b.now()))
	return true, nil
}

// MoveNode sets a block's world position. Unknown ids and non-finite
// coordinates are ignored.
func (b *Board) MoveNode(id valueobjects.NodeID, x, y float64) bool {
	block, ok := b.index[id]
	if !ok {
		return false
	}
	position, err := valueobjects.NewPosition(x, y)
	if err != nil {
		return false
	}
	old := block.Position()
	if !block.MoveTo(position) {
		return false
	}

	b.version++
	b.addEvent(events.NewBlockMoved(b.id, b.version, id, old, position, b.now()))
	return true
}

// DeleteNode removes a block and strips it from every other block's
// connections so no edge can point at a missing block.
func (b *Board) DeleteNode(id valueobjects.NodeID) bool {
	if _, ok := b.index[id]; !ok {
		return false
	}

	var detached []valueobjects.NodeID
	kept := b.blocks[:0]
	for _, block := range b.blocks {
		if block.ID().Equals(id) {
			continue
		}
		if block.Disconnect(id) {
			detached = append(detached, block.ID())
		}
		kept = append(kept, block)
	}
	for i := len(kept); i < len(b.blocks); i++ {
		b.blocks[i] = nil
	}
	b.blocks = kept
	delete(b.index, id)

	b.version++
	b.addEvent(events.NewBlockDeleted(b.id, b.version, id, detached, b.now()))
	return true
}

// Connect adds a directed connection from -> to. The reverse direction is
// never added implicitly.
func (b *Board) Connect(from, to valueobjects.NodeID) ConnectResult {
	if from.Equals(to) {
		return RejectedSelfLoop
	}
	source, ok := b.index[from]
	if !ok {
		return UnknownNode
	}
	if _, ok := b.index[to]; !ok {
		return UnknownNode
	}
	if !source.ConnectTo(to) {
		return AlreadyConnected
	}

	b.version++
	b.addEvent(events.NewBlocksConnected(b.id, b.version, from, to, b.now()))
	return Connected
}

// Disconnect removes the directed connection from -> to if present
func (b *Board) Disconnect(from, to valueobjects.NodeID) bool {
	source, ok := b.index[from]
	if !ok || !source.Disconnect(to) {
		return false
	}

	b.version++
	b.addEvent(events.NewBlocksDisconnected(b.id, b.version, from, to, b.now()))
	return true
}

// Edges derives the edge list from current block state. Connections whose
// target no longer exists are skipped.
func (b *Board) Edges() []Edge {
	edges := []Edge{}
	for _, block := range b.blocks {
		for _, target := range block.Connections() {
			if _, ok := b.index[target]; !ok {
				continue
			}
			edges = append(edges, Edge{From: block.ID(), To: target, Color: block.Color()})
		}
	}
	return edges
}

// Snapshot returns a deep copy of all blocks as plain data
func (b *Board) Snapshot() []entities.BlockState {
	states := make([]entities.BlockState, len(b.blocks))
	for i, block := range b.blocks {
		states[i] = block.State()
	}
	return states
}

// Restore replaces every block with the given states. On error the board is
// left untouched.
func (b *Board) Restore(states []entities.BlockState) error {
	if err := b.replace(states); err != nil {
		return err
	}
	b.version++
	b.addEvent(events.NewBoardRestored(b.id, b.version, len(b.blocks), b.now()))
	return nil
}

func (b *Board) replace(states []entities.BlockState) error {
	blocks := make([]*entities.Block, 0, len(states))
	index := make(map[valueobjects.NodeID]*entities.Block, len(states))
	for i, state := range states {
		block, err := entities.ReconstructBlock(state)
		if err != nil {
			return pkgerrors.Wrapf(err, "block %d", i)
		}
		if _, dup := index[block.ID()]; dup {
			return pkgerrors.NewValidationError("duplicate block id " + state.ID).
				WithCode(pkgerrors.CodeInvalidID)
		}
		blocks = append(blocks, block)
		index[block.ID()] = block
	}
	b.blocks = blocks
	b.index = index
	if b.spawned < len(blocks) {
		b.spawned = len(blocks)
	}
	return nil
}

// GetUncommittedEvents returns events raised since the last commit
func (b *Board) GetUncommittedEvents() []events.DomainEvent {
	out := make([]events.DomainEvent, len(b.events))
	copy(out, b.events)
	return out
}

// MarkEventsAsCommitted clears the uncommitted events
func (b *Board) MarkEventsAsCommitted() {
	b.events = []events.DomainEvent{}
}

func (b *Board) addEvent(event events.DomainEvent) {
	b.events = append(b.events, event)
}

func codeFor(title string) string {
	if strings.TrimSpace(title) == "" {
		return pkgerrors.CodeBlankTitle
	}
	return pkgerrors.CodeInvalidInput
}
