package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syncnotes/syncnotes-go/internal/api"
)

func (a *app) newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage room tasks",
	}

	cmd.AddCommand(
		a.newTasksListCmd(),
		a.newTasksAddCmd(),
		a.newTasksDoneCmd(),
		a.newTasksRmCmd(),
	)
	return cmd
}

func (a *app) newTasksListCmd() *cobra.Command {
	var (
		completed bool
		pending   bool
	)

	cmd := &cobra.Command{
		Use:   "list <room-id>",
		Short: "List tasks in a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.api()
			if err != nil {
				return err
			}

			var filter *bool
			if completed != pending { // exactly one of the two flags
				filter = &completed
			}

			tasks, err := client.RoomTasks(cmd.Context(), args[0], filter)
			if err != nil {
				return err
			}

			if len(tasks) == 0 {
				fmt.Println("No tasks")
				return nil
			}
			for _, task := range tasks {
				mark := " "
				if task.Completed {
					mark = "x"
				}
				fmt.Printf("[%s] %s  %s\n", mark, task.ID, task.Title)
				if task.Description != "" {
					fmt.Printf("        %s\n", task.Description)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&completed, "completed", false, "only completed tasks")
	cmd.Flags().BoolVar(&pending, "pending", false, "only pending tasks")
	cmd.MarkFlagsMutuallyExclusive("completed", "pending")
	return cmd
}

func (a *app) newTasksAddCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add <room-id> <title>",
		Short: "Create a task in a room",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.api()
			if err != nil {
				return err
			}

			task, err := client.CreateTask(cmd.Context(), args[0], api.CreateTaskRequest{
				Title:       args[1],
				Description: description,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Created task %s: %s\n", task.ID, task.Title)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	return cmd
}

func (a *app) newTasksDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <room-id> <task-id>",
		Short: "Mark a task as completed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.api()
			if err != nil {
				return err
			}

			done := true
			if err := client.UpdateTask(cmd.Context(), args[0], args[1], api.UpdateTaskRequest{Completed: &done}); err != nil {
				return err
			}
			fmt.Printf("Task %s completed\n", args[1])
			return nil
		},
	}
}

func (a *app) newTasksRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <room-id> <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.api()
			if err != nil {
				return err
			}
			if err := client.DeleteTask(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Task %s deleted\n", args[1])
			return nil
		},
	}
}
