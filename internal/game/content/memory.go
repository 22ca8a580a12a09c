package content

import "sort"

type movementKey struct {
	space string
	visit VisitType
}

// MemoryProvider is an in-memory Provider backed by maps. It is the
// implementation used by the server (tables loaded at startup) and by
// tests (fixture tables).
type MemoryProvider struct {
	spaces        map[string]SpaceConfig
	movement      map[movementKey]MovementRule
	diceOutcomes  map[movementKey]DiceOutcomeRow
	spaceEffects  map[movementKey][]SpaceEffect
	cards         map[string]Card
	cardsByType   map[CardType][]Card
	startingSpace string
}

// NewMemoryProvider builds a provider from already-parsed tables. Input
// slices are copied; later mutation of the arguments does not affect the
// provider.
func NewMemoryProvider(spaces []SpaceConfig, movement []MovementRule, dice []DiceOutcomeRow, effects []SpaceEffect, cards []Card) *MemoryProvider {
	p := &MemoryProvider{
		spaces:       make(map[string]SpaceConfig, len(spaces)),
		movement:     make(map[movementKey]MovementRule, len(movement)),
		diceOutcomes: make(map[movementKey]DiceOutcomeRow, len(dice)),
		spaceEffects: make(map[movementKey][]SpaceEffect),
		cards:        make(map[string]Card, len(cards)),
		cardsByType:  make(map[CardType][]Card),
	}
	for _, s := range spaces {
		p.spaces[s.Name] = s
		if s.IsStartingSpace && p.startingSpace == "" {
			p.startingSpace = s.Name
		}
	}
	for _, m := range movement {
		p.movement[movementKey{m.Space, m.VisitType}] = m
	}
	for _, d := range dice {
		p.diceOutcomes[movementKey{d.Space, d.VisitType}] = d
	}
	for _, e := range effects {
		k := movementKey{e.Space, e.VisitType}
		p.spaceEffects[k] = append(p.spaceEffects[k], e)
	}
	for _, c := range cards {
		p.cards[c.ID] = c
		p.cardsByType[c.Type] = append(p.cardsByType[c.Type], c)
	}
	return p
}

func (p *MemoryProvider) GetSpaceConfig(space string) (SpaceConfig, bool) {
	c, ok := p.spaces[space]
	return c, ok
}

func (p *MemoryProvider) GetMovement(space string, visit VisitType) (MovementRule, bool) {
	m, ok := p.movement[movementKey{space, visit}]
	if !ok && visit == VisitSubsequent {
		// Spaces without a dedicated subsequent-visit row fall back to
		// the first-visit rule, matching the source data tables.
		m, ok = p.movement[movementKey{space, VisitFirst}]
	}
	return m, ok
}

func (p *MemoryProvider) GetDiceOutcome(space string, visit VisitType) (DiceOutcomeRow, bool) {
	d, ok := p.diceOutcomes[movementKey{space, visit}]
	if !ok && visit == VisitSubsequent {
		d, ok = p.diceOutcomes[movementKey{space, VisitFirst}]
	}
	return d, ok
}

func (p *MemoryProvider) GetSpaceEffects(space string, visit VisitType) []SpaceEffect {
	effects := p.spaceEffects[movementKey{space, visit}]
	out := make([]SpaceEffect, len(effects))
	copy(out, effects)
	return out
}

func (p *MemoryProvider) GetCardByID(id string) (Card, bool) {
	c, ok := p.cards[id]
	return c, ok
}

func (p *MemoryProvider) GetCardsByType(t CardType) []Card {
	cards := p.cardsByType[t]
	out := make([]Card, len(cards))
	copy(out, cards)
	return out
}

func (p *MemoryProvider) StartingSpace() string {
	return p.startingSpace
}

func (p *MemoryProvider) AllSpaces() []string {
	names := make([]string, 0, len(p.spaces))
	for name := range p.spaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllSpaceConfigs returns every space config sorted by name.
func (p *MemoryProvider) AllSpaceConfigs() []SpaceConfig {
	out := make([]SpaceConfig, 0, len(p.spaces))
	for _, name := range p.AllSpaces() {
		out = append(out, p.spaces[name])
	}
	return out
}

// AllCards returns every card sorted by ID.
func (p *MemoryProvider) AllCards() []Card {
	ids := make([]string, 0, len(p.cards))
	for id := range p.cards {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Card, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.cards[id])
	}
	return out
}
