package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syncnotes/syncnotes-go/internal/api"
)

func (a *app) newRoomsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "Manage rooms",
	}

	cmd.AddCommand(
		a.newRoomsListCmd(),
		a.newRoomsCreateCmd(),
		a.newRoomsShowCmd(),
		a.newRoomsJoinCmd(),
		a.newRoomsDeleteCmd(),
	)
	return cmd
}

func (a *app) newRoomsListCmd() *cobra.Command {
	var public bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your rooms (or public rooms with --public)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.api()
			if err != nil {
				return err
			}

			var rooms []api.Room
			if public {
				rooms, err = client.PublicRooms(cmd.Context())
			} else {
				rooms, err = client.MyRooms(cmd.Context())
			}
			if err != nil {
				return err
			}

			if len(rooms) == 0 {
				fmt.Println("No rooms")
				return nil
			}
			for _, room := range rooms {
				visibility := "private"
				if room.IsPublic {
					visibility = "public"
				}
				fmt.Printf("%s  %-20s %-8s %s\n", room.ID, room.Name, visibility, room.Description)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&public, "public", false, "list public rooms instead of your own")
	return cmd
}

func (a *app) newRoomsCreateCmd() *cobra.Command {
	var (
		description string
		public      bool
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.api()
			if err != nil {
				return err
			}

			room, err := client.CreateRoom(cmd.Context(), api.CreateRoomRequest{
				Name:        args[0],
				Description: description,
				IsPublic:    public,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Created room %s (%s)\n", room.Name, room.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "room description")
	cmd.Flags().BoolVar(&public, "public", false, "make the room public")
	return cmd
}

func (a *app) newRoomsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <room-id>",
		Short: "Show room details and members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.api()
			if err != nil {
				return err
			}

			room, err := client.RoomDetails(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			visibility := "private"
			if room.IsPublic {
				visibility = "public"
			}
			fmt.Printf("%s (%s, %s)\n", room.Name, room.ID, visibility)
			if room.Description != "" {
				fmt.Println(room.Description)
			}
			fmt.Printf("Members: %d\n", len(room.Members))
			for _, member := range room.Members {
				fmt.Printf("  %-20s %-10s (member %s)\n", member.Username, member.Role, member.ID)
			}
			return nil
		},
	}
}

func (a *app) newRoomsJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <room-id>",
		Short: "Join a public room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.api()
			if err != nil {
				return err
			}
			if err := client.JoinRoom(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Joined room %s\n", args[0])
			return nil
		},
	}
}

func (a *app) newRoomsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <room-id>",
		Short: "Delete a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.api()
			if err != nil {
				return err
			}
			if err := client.DeleteRoom(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted room %s\n", args[0])
			return nil
		},
	}
}

func (a *app) newMembersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Manage room members",
	}

	var role string
	add := &cobra.Command{
		Use:   "add <room-id> <username>",
		Short: "Add a user to a room by username",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, username := args[0], args[1]

			client, err := a.api()
			if err != nil {
				return err
			}

			user, err := client.SearchUser(cmd.Context(), username)
			if err != nil {
				return err
			}
			if err := client.AddMember(cmd.Context(), roomID, user.ID.String(), role); err != nil {
				return err
			}

			fmt.Printf("Added %s to room %s as %s\n", username, roomID, role)
			return nil
		},
	}
	add.Flags().StringVar(&role, "role", "MEMBER", "role for the new member")

	setRole := &cobra.Command{
		Use:   "role <room-id> <member-id> <role>",
		Short: "Change a member's role",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.api()
			if err != nil {
				return err
			}
			if err := client.UpdateMemberRole(cmd.Context(), args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Printf("Member %s is now %s\n", args[1], args[2])
			return nil
		},
	}

	cmd.AddCommand(add, setRole)
	return cmd
}
