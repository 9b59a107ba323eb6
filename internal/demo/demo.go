package demo

import (
	"context"
	"fmt"

	"github.com/teemow/defunc/internal/defunc"
)

// Type names.
const (
	TypeRandom = "Random"
	TypeDice   = "Dice"
	TypeCup    = "Cup"
)

// Operation names.
const (
	OpRandom = "random"
	OpRoll   = "roll"
	OpShake  = "shake"
	OpEmpty  = "empty"
)

// Dice is a single die.
type Dice struct {
	Faces int
	Value int
}

// Cup holds dice while they are shaken.
type Cup struct {
	dice []*Dice
}

// Len returns the number of dice in the cup.
func (c *Cup) Len() int {
	return len(c.dice)
}

// Demo holds the declared example types and their operations.
type Demo struct {
	Random *defunc.Type
	Dice   *defunc.Type
	Cup    *defunc.Type

	random func(ctx context.Context) (int, error)
	roll   func(ctx context.Context, d *Dice) (int, error)
	shake  func(ctx context.Context, c *Cup, n int) (int, error)
	empty  func(ctx context.Context, c *Cup) (int, error)
}

// WatchDefaults watches every example operation. Types that already have a
// watch set (for instance from a manifest) keep it.
func WatchDefaults(e *defunc.Engine) {
	watchIfEmpty(e.Declare(TypeRandom), defunc.ScopeStatic, OpRandom)
	watchIfEmpty(e.Declare(TypeDice), defunc.ScopeInstance, OpRoll)
	watchIfEmpty(e.Declare(TypeCup), defunc.ScopeInstance, OpShake, OpEmpty)
}

func watchIfEmpty(t *defunc.Type, scope defunc.Scope, names ...string) {
	if len(t.Watched(scope)) == 0 {
		t.Watch(scope, names...)
	}
}

// Register declares the example types on e and defines their operations.
// Watch sets must be configured before Register is called.
func Register(e *defunc.Engine) *Demo {
	d := &Demo{
		Random: e.Declare(TypeRandom),
		Dice:   e.Declare(TypeDice),
		Cup:    e.Declare(TypeCup),
	}

	d.random = defunc.Func0(d.Random, OpRandom, func(context.Context) (int, error) {
		// chosen by fair dice roll
		return 5, nil
	})

	d.roll = defunc.Method0(d.Dice, OpRoll, func(ctx context.Context, die *Dice) (int, error) {
		r, err := d.random(ctx)
		if err != nil {
			return 0, err
		}
		die.Value = r%die.Faces + 1
		return die.Value, nil
	})

	d.shake = defunc.Method1(d.Cup, OpShake, func(ctx context.Context, cup *Cup, n int) (int, error) {
		if n < 0 {
			return 0, fmt.Errorf("cannot shake %d dice", n)
		}
		total := 0
		for i := 0; i < n; i++ {
			die := d.NewDice(6)
			cup.dice = append(cup.dice, die)
			v, err := d.roll(ctx, die)
			if err != nil {
				return total, err
			}
			total += v
		}
		return total, nil
	})

	d.empty = defunc.Method0(d.Cup, OpEmpty, func(_ context.Context, cup *Cup) (int, error) {
		n := len(cup.dice)
		for _, die := range cup.dice {
			defunc.Release(d.Dice, die)
		}
		cup.dice = nil
		return n, nil
	})

	return d
}

// NewDice returns a tracked die with the given number of faces.
func (d *Demo) NewDice(faces int) *Dice {
	if faces <= 0 {
		faces = 6
	}
	die := &Dice{Faces: faces}
	defunc.Track(d.Dice, die)
	return die
}

// NewCup returns an untracked empty cup.
func (d *Demo) NewCup() *Cup {
	return &Cup{}
}

// RandomValue calls Random.random.
func (d *Demo) RandomValue(ctx context.Context) (int, error) {
	return d.random(ctx)
}

// Roll rolls die.
func (d *Demo) Roll(ctx context.Context, die *Dice) (int, error) {
	return d.roll(ctx, die)
}

// Shake adds n new dice to cup, rolls them and returns the sum.
func (d *Demo) Shake(ctx context.Context, cup *Cup, n int) (int, error) {
	return d.shake(ctx, cup, n)
}

// Empty releases every die in cup and returns how many there were.
func (d *Demo) Empty(ctx context.Context, cup *Cup) (int, error) {
	return d.empty(ctx, cup)
}

// Run plays one round: a bare random call, then a cup of n dice shaken and emptied.
func (d *Demo) Run(ctx context.Context, n int) error {
	if _, err := d.RandomValue(ctx); err != nil {
		return fmt.Errorf("random: %w", err)
	}

	cup := d.NewCup()
	if _, err := d.Shake(ctx, cup, n); err != nil {
		return fmt.Errorf("shake: %w", err)
	}
	if _, err := d.Empty(ctx, cup); err != nil {
		return fmt.Errorf("empty: %w", err)
	}
	return nil
}
