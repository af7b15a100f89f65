package objects

import (
	"gorm.io/gorm"
)

// ArticleStatus 文章状态，取值与 Solo 保持一致
type ArticleStatus int

// 零值为已发布，与 Solo 的存储取值一致，不能调换
const (
	// ArticleStatusPublished 已发布
	ArticleStatusPublished ArticleStatus = 0
	// ArticleStatusDraft 草稿
	ArticleStatusDraft ArticleStatus = 1
)

func (s ArticleStatus) String() string {
	switch s {
	case ArticleStatusPublished:
		return "published"
	case ArticleStatusDraft:
		return "draft"
	default:
		return "unknown"
	}
}

// Article 对应数据库表 solo_articles / mongo 集合 solo_articles
type Article struct {
	// ID 由存储层的 ID 生成器分配
	ID string `gorm:"column:id;primaryKey;type:varchar(64)" json:"id,omitempty" bson:"_id"`

	Title        string `gorm:"column:title;type:varchar(255);not null" json:"title" bson:"title"`
	AbstractHTML string `gorm:"column:abstract_html;type:text" json:"abstractHtml" bson:"abstract_html"`
	AbstractText string `gorm:"column:abstract_text;type:text" json:"abstractText" bson:"abstract_text"`

	// 逗号分隔的标签名
	TagsRef  string `gorm:"column:tags_ref;type:varchar(512)" json:"tagsRef" bson:"tags_ref"`
	AuthorID string `gorm:"column:author_id;type:varchar(64);index:idx_author" json:"authorId" bson:"author_id"`

	CommentCount int    `gorm:"column:comment_count;not null;default:0" json:"commentCount" bson:"comment_count"`
	ViewCount    int    `gorm:"column:view_count;not null;default:0" json:"viewCount" bson:"view_count"`
	Content      string `gorm:"column:content;type:text" json:"content" bson:"content"`

	// 在未删除的文章中唯一，写入时校验，迁移时另建部分唯一索引兜底
	Permalink string `gorm:"column:permalink;type:varchar(255);not null;index:idx_permalink" json:"permalink" bson:"permalink"`
	// 零值即已发布，草稿必须显式设置 ArticleStatusDraft
	Status ArticleStatus `gorm:"column:status;not null;index:idx_status" json:"status" bson:"status"`
	PutTop bool          `gorm:"column:put_top;not null" json:"putTop" bson:"put_top"`

	// 毫秒时间戳，created 插入后不可变
	Created int64 `gorm:"column:created;not null;index:idx_created" json:"created" bson:"created"`
	Updated int64 `gorm:"column:updated;not null" json:"updated" bson:"updated"`

	// 创建时生成的 [0,1) 随机数，随机取文章时作为排序键，不会重新计算
	RandomDouble float64 `gorm:"column:random_double;not null;index:idx_random" json:"randomDouble" bson:"random_double"`

	SignID       string `gorm:"column:sign_id;type:varchar(64)" json:"signId" bson:"sign_id"`
	Commentable  bool   `gorm:"column:commentable;not null" json:"commentable" bson:"commentable"`
	ViewPassword string `gorm:"column:view_pwd;type:varchar(255)" json:"viewPwd" bson:"view_pwd"`
	Img1URL      string `gorm:"column:img1_url;type:varchar(512)" json:"img1Url" bson:"img1_url"`

	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-" bson:"-"`
}

// TableName 指定表名
func (Article) TableName() string {
	return "solo_articles"
}

// IsPublished 文章状态是否为已发布
func (a *Article) IsPublished() bool {
	return a.Status == ArticleStatusPublished
}

// IsProtected 是否设置了访问密码
func (a *Article) IsProtected() bool {
	return a.ViewPassword != ""
}
