package roomhandler

type RoomInfo struct {
	Room    string `json:"room"    example:"lobby"`
	Members int    `json:"members" example:"3"`
	Strokes int    `json:"strokes" example:"42"`
} // @name RoomInfo

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse
