package http

import "github.com/vovakirdan/wireirc/internal/core"

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Users      int            `json:"users"`
	Registered int            `json:"registered"`
	Rooms      []RoomResponse `json:"rooms"`
	Totals     TotalsResponse `json:"totals"`
}

// RoomResponse describes one live room.
type RoomResponse struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// TotalsResponse aggregates room data.
type TotalsResponse struct {
	Rooms       int `json:"rooms"`
	Memberships int `json:"memberships"`
}

func statsResponseFromCore(st core.Stats) StatsResponse {
	resp := StatsResponse{
		Users:      st.Users,
		Registered: st.Registered,
		Rooms:      make([]RoomResponse, 0, len(st.Rooms)),
	}
	for _, r := range st.Rooms {
		resp.Rooms = append(resp.Rooms, RoomResponse{Name: r.Name, Members: r.Members})
		resp.Totals.Memberships += r.Members
	}
	resp.Totals.Rooms = len(st.Rooms)
	return resp
}
