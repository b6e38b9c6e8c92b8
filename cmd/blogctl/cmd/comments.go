package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cppla/myblog/listing"
	"github.com/cppla/myblog/models"
)

var commentBody string

func init() {
	RootCmd.AddCommand(commentsCmd, commentCmd)
	commentCmd.AddCommand(commentAddCmd, commentDeleteCmd)

	commentAddCmd.Flags().StringVarP(&commentBody, "body", "b", "", "comment text")
	commentAddCmd.Flags().StringVarP(&imagePath, "image", "i", "", "image file to attach")
}

var commentsCmd = &cobra.Command{
	Use:   "comments <post-id> [page]",
	Short: "List a post's comments, newest first",
	Args:  cobra.RangeArgs(1, 2),
	Run:   listComments,
}

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Add or delete a comment",
}

var commentAddCmd = &cobra.Command{
	Use:   "add <post-id>",
	Short: "Comment on a post",
	Args:  cobra.ExactArgs(1),
	Run:   addComment,
}

var commentDeleteCmd = &cobra.Command{
	Use:   "delete <comment-id>",
	Short: "Delete your comment (admins may delete any)",
	Args:  cobra.ExactArgs(1),
	Run:   deleteComment,
}

func listComments(cmd *cobra.Command, args []string) {
	postID := mustID(args[0])
	page := listing.DefaultPage
	if len(args) == 2 {
		page = listing.ParsePage(args[1])
	}
	size := pageSize
	if size <= 0 {
		size = 10
	}

	l := listing.New[models.Comment](newClient().Comments(postID), size)
	st, err := l.Select(context.Background(), page)
	if err != nil {
		outputErrorAndExit("Error listing comments: %v", err)
	}
	if st.Status == listing.StatusEmpty {
		fmt.Println("🤷‍♂️ No comments")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"ID", "Author", "Comment", "Created"})
	for _, c := range st.Records {
		body := truncate(c.Body, 64)
		if c.ImageURL != nil {
			body += " 🖼"
		}
		table.Append([]string{
			strconv.FormatUint(uint64(c.ID), 10),
			c.User.Username,
			body,
			c.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	table.Render()
	fmt.Printf("Page %d of %d (%d comments)\n", st.CurrentPage, st.LastPage, st.Total)
}

func addComment(cmd *cobra.Command, args []string) {
	c := newClient()
	mustAuth(c)
	postID := mustID(args[0])

	form := newForm(c, c.Comments(postID))
	form.SetBody(commentBody)
	id := submitForm(form, imagePath)
	fmt.Printf("✅ Comment posted (id %d)\n", id)
}

func deleteComment(cmd *cobra.Command, args []string) {
	c := newClient()
	mustAuth(c)
	if err := c.Comments(0).Delete(context.Background(), mustID(args[0])); err != nil {
		outputErrorAndExit("Error deleting comment: %v", err)
	}
	fmt.Println("🗑️ Comment deleted")
}
