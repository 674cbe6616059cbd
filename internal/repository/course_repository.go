package repository

import (
	"github.com/mvtrinh/examgate/internal/model"
	"gorm.io/gorm"
)

type CourseRepository interface {
	CreateCourse(course *model.Course) error
	CreateChapter(chapter *model.Chapter) error
	FindCourseByID(id uint) (*model.Course, error)
	FindChapterByID(id uint) (*model.Chapter, error)
}

type courseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) CreateCourse(course *model.Course) error {
	return r.db.Create(course).Error
}

func (r *courseRepository) CreateChapter(chapter *model.Chapter) error {
	return r.db.Create(chapter).Error
}

func (r *courseRepository) FindCourseByID(id uint) (*model.Course, error) {
	var course model.Course
	err := r.db.First(&course, id).Error
	return &course, err
}

func (r *courseRepository) FindChapterByID(id uint) (*model.Chapter, error) {
	var chapter model.Chapter
	err := r.db.First(&chapter, id).Error
	return &chapter, err
}
