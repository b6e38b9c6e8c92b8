package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cppla/myblog/listing"
	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/submission"
)

var (
	postTitle string
	postBody  string
	imagePath string
)

func init() {
	RootCmd.AddCommand(postsCmd, postCmd)
	postCmd.AddCommand(postCreateCmd, postShowCmd, postDeleteCmd)

	postCreateCmd.Flags().StringVarP(&postTitle, "title", "t", "", "post title")
	postCreateCmd.Flags().StringVarP(&postBody, "body", "b", "", "post body")
	postCreateCmd.Flags().StringVarP(&imagePath, "image", "i", "", "image file to attach")
}

var postsCmd = &cobra.Command{
	Use:     "posts [page]",
	Aliases: []string{"ls"},
	Short:   "List posts, newest first",
	Args:    cobra.MaximumNArgs(1),
	Run:     listPosts,
}

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Create, show or delete a post",
}

var postCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Publish a post (admin only)",
	Run:   createPost,
}

var postShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one post",
	Args:  cobra.ExactArgs(1),
	Run:   showPost,
}

var postDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a post and its comments (admin only)",
	Args:  cobra.ExactArgs(1),
	Run:   deletePost,
}

func listPosts(cmd *cobra.Command, args []string) {
	page := listing.DefaultPage
	if len(args) == 1 {
		page = listing.ParsePage(args[0])
	}
	size := pageSize
	if size <= 0 {
		size = 5
	}

	l := listing.New[models.Post](newClient().Posts(), size)
	st, err := l.Select(context.Background(), page)
	if err != nil {
		outputErrorAndExit("Error listing posts: %v", err)
	}
	if st.Status == listing.StatusEmpty {
		fmt.Println("🤷‍♂️ No posts")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"ID", "Title", "Author", "Image", "Created"})
	for _, p := range st.Records {
		image := ""
		if p.ImageURL != nil {
			image = "🖼"
		}
		table.Append([]string{
			strconv.FormatUint(uint64(p.ID), 10),
			truncate(p.Title, 48),
			p.User.Username,
			image,
			p.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	table.Render()
	fmt.Printf("Page %d of %d (%d posts)\n", st.CurrentPage, st.LastPage, st.Total)
}

func createPost(cmd *cobra.Command, args []string) {
	c := newClient()
	mustAuth(c)

	form := newForm(c, c.Posts(), submission.WithTitle())
	form.SetTitle(postTitle)
	form.SetBody(postBody)
	id := submitForm(form, imagePath)
	fmt.Printf("✅ Successfully created blog! (id %d)\n", id)
}

func showPost(cmd *cobra.Command, args []string) {
	id := mustID(args[0])
	post, err := newClient().Posts().Get(context.Background(), id)
	if err != nil {
		outputErrorAndExit("Error loading post: %v", err)
	}
	fmt.Printf("# %s\n", post.Title)
	fmt.Printf("by %s, %s\n\n", post.User.Username, post.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Println(post.Body)
	if post.ImageURL != nil {
		fmt.Println("\nImage:", *post.ImageURL)
	}
}

func deletePost(cmd *cobra.Command, args []string) {
	c := newClient()
	mustAuth(c)
	id := mustID(args[0])
	if err := c.Posts().Delete(context.Background(), id); err != nil {
		outputErrorAndExit("Error deleting post: %v", err)
	}
	fmt.Println("🗑️ Successfully deleted blog!")
}

func mustID(raw string) uint {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		outputErrorAndExit("invalid id %q", raw)
	}
	return uint(id)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
