package realtime

import "fmt"

// Room is a realtime channel scoped to one company.
type Room struct {
	Path      string `json:"room"`
	CompanyID string `json:"-"`
}

// CompanyApplicationsRoom carries install/uninstall events of a company.
func CompanyApplicationsRoom(companyID string) Room {
	return Room{Path: fmt.Sprintf("/companies/%s/applications", companyID), CompanyID: companyID}
}

// ChannelFeedRoom carries message events of one channel.
func ChannelFeedRoom(companyID, workspaceID, channelID string) Room {
	return Room{
		Path:      fmt.Sprintf("/companies/%s/workspaces/%s/channels/%s/feed", companyID, workspaceID, channelID),
		CompanyID: companyID,
	}
}

// CompanyChannelsRoom carries channel events of one workspace.
func CompanyChannelsRoom(companyID, workspaceID string) Room {
	return Room{
		Path:      fmt.Sprintf("/companies/%s/workspaces/%s/channels", companyID, workspaceID),
		CompanyID: companyID,
	}
}
