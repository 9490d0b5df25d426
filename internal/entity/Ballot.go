package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type BallotType string

const (
	BallotTypeInstantRunoff BallotType = "instant-runoff"
	BallotTypeStar          BallotType = "star"
	BallotTypeApproval      BallotType = "approval"
	BallotTypeChooseOne     BallotType = "choose-one"
)

func (t BallotType) Valid() bool {
	switch t {
	case BallotTypeInstantRunoff, BallotTypeStar, BallotTypeApproval, BallotTypeChooseOne:
		return true
	}
	return false
}

const (
	MinStarScore = 0
	MaxStarScore = 5
)

var ErrUnknownBallotType = errors.New("unknown ballot type")

// BallotPayload is implemented only by the four ballot shapes below.
type BallotPayload interface {
	BallotType() BallotType
	isBallotPayload()
}

type InstantRunoffBallot struct {
	Rankings []string `json:"rankings"`
}

type ChoiceScore struct {
	Choice string `json:"choice"`
	Score  int    `json:"score"`
}

type StarBallot struct {
	Scores []ChoiceScore `json:"scores"`
}

type ApprovalBallot struct {
	Approve *bool `json:"approve"`
}

type ChooseOneBallot struct {
	Choice string `json:"choice"`
}

func (InstantRunoffBallot) BallotType() BallotType { return BallotTypeInstantRunoff }
func (StarBallot) BallotType() BallotType          { return BallotTypeStar }
func (ApprovalBallot) BallotType() BallotType      { return BallotTypeApproval }
func (ChooseOneBallot) BallotType() BallotType     { return BallotTypeChooseOne }

func (InstantRunoffBallot) isBallotPayload() {}
func (StarBallot) isBallotPayload()          {}
func (ApprovalBallot) isBallotPayload()      {}
func (ChooseOneBallot) isBallotPayload()     {}

type Ballot struct {
	ID      string
	PollID  string
	Payload BallotPayload
	CastAt  time.Time
}

// MarshalBallotPayload encodes a payload with its "ballot_type" discriminator.
func MarshalBallotPayload(p BallotPayload) ([]byte, error) {
	if p == nil {
		return nil, ErrUnknownBallotType
	}

	switch v := p.(type) {
	case InstantRunoffBallot:
		return json.Marshal(struct {
			Type BallotType `json:"ballot_type"`
			InstantRunoffBallot
		}{v.BallotType(), v})
	case StarBallot:
		return json.Marshal(struct {
			Type BallotType `json:"ballot_type"`
			StarBallot
		}{v.BallotType(), v})
	case ApprovalBallot:
		return json.Marshal(struct {
			Type BallotType `json:"ballot_type"`
			ApprovalBallot
		}{v.BallotType(), v})
	case ChooseOneBallot:
		return json.Marshal(struct {
			Type BallotType `json:"ballot_type"`
			ChooseOneBallot
		}{v.BallotType(), v})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownBallotType, p)
	}
}

// UnmarshalBallotPayload decodes a payload using its "ballot_type" field.
func UnmarshalBallotPayload(data []byte) (BallotPayload, error) {
	var head struct {
		Type BallotType `json:"ballot_type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	switch head.Type {
	case BallotTypeInstantRunoff:
		var b InstantRunoffBallot
		err := json.Unmarshal(data, &b)
		return b, err
	case BallotTypeStar:
		var b StarBallot
		err := json.Unmarshal(data, &b)
		return b, err
	case BallotTypeApproval:
		var b ApprovalBallot
		err := json.Unmarshal(data, &b)
		return b, err
	case BallotTypeChooseOne:
		var b ChooseOneBallot
		err := json.Unmarshal(data, &b)
		return b, err
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBallotType, head.Type)
	}
}
