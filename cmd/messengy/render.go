package main

import (
	"fmt"
	"io"
	"messengy/projection"
	"strconv"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func presence(online bool) string {
	if online {
		return color.Green.Sprint("●")
	}
	return color.Gray.Sprint("○")
}

// renderChats prints the chat list. A negative total hides the unread summary.
func renderChats(out io.Writer, rows []projection.ChatRow, total int) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No conversation yet, see `messengy friends`")
		return
	}
	table := newTable(out, "", "Chat", "Last message", "When", "Unread", "ID")
	for _, row := range rows {
		badge := ""
		if row.ShowBadge() {
			badge = color.New(color.FgWhite, color.BgRed, color.OpBold).Sprint(" " + strconv.Itoa(row.UnreadCount) + " ")
		}
		table.Append([]string{presence(row.Online), row.Title, row.Preview, row.Timestamp, badge, row.ChannelID})
	}
	table.Render()
	if total > 0 {
		fmt.Fprintf(out, "%s unread\n", color.Bold.Sprint(total))
	}
}

func renderFriends(out io.Writer, rows []projection.FriendRow) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "Nobody else here yet")
		return
	}
	table := newTable(out, "", "Name", "Status", "ID")
	for _, row := range rows {
		table.Append([]string{presence(row.Status == "Online"), row.Name, row.Status, row.UserID})
	}
	table.Render()
}

func renderNotifications(out io.Writer, rows []projection.NotificationRow) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No notification")
		return
	}
	table := newTable(out, "", "From", "Message", "When")
	for _, row := range rows {
		marker := " "
		if row.Unread {
			marker = color.Cyan.Sprint("•")
		}
		table.Append([]string{marker, row.UserName, row.Message, row.Timestamp})
	}
	table.Render()
}

func renderWarning(out io.Writer, message string) {
	fmt.Fprintln(out, color.Yellow.Sprint(message))
}
