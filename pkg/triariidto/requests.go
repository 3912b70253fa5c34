package triariidto

type CreateRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type JoinRequest struct {
	Name string `json:"name"`
}

type SelectRequest struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type MoveRequest struct {
	From  Coord  `json:"from"`
	Dir   string `json:"dir"`
	Count int    `json:"count"`
}
