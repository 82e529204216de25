package core

import "time"

// Action 是用户与商品的交互类型。
type Action string

const (
	ActionView     Action = "view"
	ActionFavorite Action = "favorite"
	ActionCart     Action = "cart"
	ActionOrder    Action = "order"
	ActionReview   Action = "review"
)

// Weight 返回交互对热度/趋势的贡献权重。
func (a Action) Weight() float64 {
	switch a {
	case ActionView:
		return 1.0
	case ActionFavorite:
		return 3.0
	case ActionCart:
		return 5.0
	case ActionOrder:
		return 10.0
	case ActionReview:
		return 8.0
	default:
		return 1.0
	}
}

// TrainingLabel 返回在线训练用的标签值。
// review 不参与 embedding 训练，落到默认弱标签。
func (a Action) TrainingLabel() float64 {
	switch a {
	case ActionView:
		return 0.3
	case ActionFavorite:
		return 0.5
	case ActionCart:
		return 0.7
	case ActionOrder:
		return 1.0
	default:
		return 0.1
	}
}

// Interaction 是消息层投递进来的交互事件。
type Interaction struct {
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	Action    Action    `json:"action"`
	At        time.Time `json:"at"`
}
